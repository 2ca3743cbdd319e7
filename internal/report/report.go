// Package report publishes exported CSV reports somewhere a user can fetch
// them: a local directory or an S3-compatible bucket.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Publisher stores one report and returns where it went.
type Publisher interface {
	Publish(ctx context.Context, name string, csv []byte) (string, error)
}

// FileName is the download name of a report produced at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("bookmark_meta_%d.csv", t.UnixMilli())
}

// FilePublisher writes reports into Dir.
type FilePublisher struct {
	Dir string
}

func NewFilePublisher(dir string) *FilePublisher { return &FilePublisher{Dir: dir} }

func (p *FilePublisher) Publish(_ context.Context, name string, csv []byte) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(p.Dir, filepath.Base(name))
	if err := os.WriteFile(path, csv, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Multi publishes to every publisher and returns the first location. It
// fails only when all of them fail.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, name string, csv []byte) (string, error) {
	var first string
	var lastErr error
	for _, p := range m {
		loc, err := p.Publish(ctx, name, csv)
		if err != nil {
			lastErr = err
			continue
		}
		if first == "" {
			first = loc
		}
	}
	if first == "" && lastErr != nil {
		return "", lastErr
	}
	return first, nil
}
