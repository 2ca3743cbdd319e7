// Package app wires configuration into a running service. The server and the
// CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/config"
	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/metrics"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/report"
	"bookmark-cataloger/internal/service"
	"bookmark-cataloger/internal/store"
	"bookmark-cataloger/pkg/logger"
)

// clientTimeout bounds any single request; the scan timeout is applied per
// fetch on top of it.
const clientTimeout = 60 * time.Second

// App holds everything built from a Config.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    store.Store
	Tree     *bookmarks.Memory
	Bus      *events.Bus
	Registry *prometheus.Registry
	Service  *service.Service

	// InputPath is set when the tree came from a URL list instead of the
	// bookmark file.
	InputPath string
}

// Options adjust how New builds the app.
type Options struct {
	// Input is a CSV or NDJSON URL list used instead of the bookmark file.
	Input string
	// Extra receives every event in addition to the bus.
	Extra events.Publisher
}

// New opens the store and the bookmark tree and builds the service. Work the
// service starts in the background runs under ctx.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger, o Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if l == nil {
		l = logger.NewWith(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	tree, err := OpenTree(cfg.Bookmarks.Path, o.Input)
	if err != nil {
		st.Close()
		return nil, err
	}

	reports, err := reportPublisher(ctx, cfg.Report)
	if err != nil {
		st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := events.NewBus(256)
	pub := events.Publisher(bus)
	if o.Extra != nil {
		pub = events.Multi{bus, o.Extra}
	}
	fetcher := crawler.NewHTTPClient(clientTimeout, cfg.Fetch.DialTimeout, cfg.Fetch.MaxBodyBytes).
		WithUserAgent(cfg.Fetch.UserAgent)

	svc := service.New(ctx, service.Deps{
		Tree:      tree,
		Store:     st,
		Fetcher:   fetcher,
		Publisher: pub,
		Reports:   reports,
		Metrics:   metrics.New(reg),
		Logger:    l,
		Defaults:  cfg.Defaults,
		ReportURL: cfg.ReportURL(),
	})
	l.Infof("store=%s bookmarks=%s links=%d", cfg.Store.Driver, cfg.Bookmarks.Path, tree.Count())

	return &App{
		Config:    cfg,
		Log:       l,
		Store:     st,
		Tree:      tree,
		Bus:       bus,
		Registry:  reg,
		Service:   svc,
		InputPath: o.Input,
	}, nil
}

// OpenTree loads the bookmark tree: from input when given, else from the
// bookmark file, else an empty bookmarks bar.
func OpenTree(path, input string) (*bookmarks.Memory, error) {
	if input != "" {
		return bookmarks.FromURLs(input)
	}
	if path != "" {
		t, err := bookmarks.LoadFile(path)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load bookmarks %s: %w", path, err)
		}
	}
	return bookmarks.NewMemory([]*models.Node{{Title: "Bookmarks bar"}}), nil
}

func reportPublisher(ctx context.Context, cfg config.Report) (report.Publisher, error) {
	var pubs report.Multi
	if cfg.S3.Bucket != "" {
		p, err := report.NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if cfg.Dir != "" {
		pubs = append(pubs, report.NewFilePublisher(cfg.Dir))
	}
	if len(pubs) == 0 {
		return nil, nil
	}
	return pubs, nil
}

// Close saves the bookmark tree when autosave is on and closes the store. A
// tree imported from a URL list never overwrites an existing bookmark file.
func (a *App) Close() error {
	var errs []error
	if a.shouldSave() {
		if err := a.Tree.SaveFile(a.Config.Bookmarks.Path); err != nil {
			errs = append(errs, fmt.Errorf("save bookmarks: %w", err))
		} else {
			a.Log.Infof("bookmarks saved to %s", a.Config.Bookmarks.Path)
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) shouldSave() bool {
	path := a.Config.Bookmarks.Path
	if !a.Config.Bookmarks.Autosave || path == "" {
		return false
	}
	if a.InputPath == "" {
		return true
	}
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}
