// Package config loads the YAML settings file and applies BOOKMARKCAT_*
// environment overrides on top of it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/report"
)

type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PublicURL is the address users reach the server on; the CSV bookmark
	// points at PublicURL + "/export".
	PublicURL string `yaml:"public_url"`
}

type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Bookmarks struct {
	Path     string `yaml:"path"`
	Autosave bool   `yaml:"autosave"`
}

type Fetch struct {
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
}

type Report struct {
	Dir string          `yaml:"dir"`
	S3  report.S3Config `yaml:"s3"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the whole settings file.
type Config struct {
	Server    Server             `yaml:"server"`
	Store     Store              `yaml:"store"`
	Bookmarks Bookmarks          `yaml:"bookmarks"`
	Fetch     Fetch              `yaml:"fetch"`
	Report    Report             `yaml:"report"`
	Log       Log                `yaml:"log"`
	Defaults  models.ScanOptions `yaml:"defaults"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			PublicURL:    "http://localhost:8080",
		},
		Store:     Store{Driver: "sqlite", DSN: "data/bookmarkcat.db"},
		Bookmarks: Bookmarks{Path: "bookmarks.html", Autosave: true},
		Fetch: Fetch{
			UserAgent:    "",
			MaxBodyBytes: 5 * 1024 * 1024,
			DialTimeout:  5 * time.Second,
		},
		Log:      Log{Level: "info", Format: "text"},
		Defaults: models.DefaultScanOptions(),
	}
}

// Load reads path over the defaults (a missing path is not an error when
// path is empty) and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("BOOKMARKCAT_ADDR", &c.Server.Addr)
	str("BOOKMARKCAT_PUBLIC_URL", &c.Server.PublicURL)
	str("BOOKMARKCAT_STORE_DRIVER", &c.Store.Driver)
	str("BOOKMARKCAT_STORE_DSN", &c.Store.DSN)
	str("BOOKMARKCAT_BOOKMARKS", &c.Bookmarks.Path)
	str("BOOKMARKCAT_USER_AGENT", &c.Fetch.UserAgent)
	str("BOOKMARKCAT_REPORT_DIR", &c.Report.Dir)
	str("BOOKMARKCAT_S3_BUCKET", &c.Report.S3.Bucket)
	str("BOOKMARKCAT_S3_REGION", &c.Report.S3.Region)
	str("BOOKMARKCAT_S3_ENDPOINT", &c.Report.S3.Endpoint)
	str("BOOKMARKCAT_S3_ACCESS_KEY_ID", &c.Report.S3.AccessKeyID)
	str("BOOKMARKCAT_S3_SECRET_ACCESS_KEY", &c.Report.S3.SecretAccessKey)
	str("BOOKMARKCAT_LOG_LEVEL", &c.Log.Level)
	str("BOOKMARKCAT_LOG_FORMAT", &c.Log.Format)

	if v := getenv("BOOKMARKCAT_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOOKMARKCAT_PARALLEL: %w", err)
		}
		c.Defaults.Parallel = n
	}
	if v := getenv("BOOKMARKCAT_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOOKMARKCAT_TIMEOUT_MS: %w", err)
		}
		c.Defaults.TimeoutMs = n
	}
	if v := getenv("BOOKMARKCAT_AUTOSAVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOOKMARKCAT_AUTOSAVE: %w", err)
		}
		c.Bookmarks.Autosave = b
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !c.Defaults.Mode.Valid() {
		return fmt.Errorf("unknown scan mode %q", c.Defaults.Mode)
	}
	if c.Defaults.TimeoutMs <= 0 {
		return fmt.Errorf("defaults.timeout_ms must be positive")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive")
	}
	if c.Report.S3.Bucket != "" && c.Report.S3.Region == "" {
		return fmt.Errorf("report.s3.region is required when a bucket is set")
	}
	return nil
}

// ReportURL is the page the CSV bookmark opens.
func (c *Config) ReportURL() string {
	return strings.TrimRight(c.Server.PublicURL, "/") + "/export"
}
