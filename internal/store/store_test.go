package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bookmark-cataloger/internal/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "cat.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	mem, err := OpenSQL(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	t.Cleanup(func() {
		sqlite.Close()
		mem.Close()
	})
	return map[string]Store{"memory": NewMemory(), "sqlite": sqlite, "sqlite-memory": mem}
}

func TestOptionsMergeOverDefaults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			defaults := models.DefaultScanOptions()

			opts, found, err := LoadOptions(ctx, s, defaults)
			if err != nil || found {
				t.Fatalf("want defaults with found=false, got found=%v err=%v", found, err)
			}
			if opts != defaults {
				t.Fatalf("want defaults, got %+v", opts)
			}

			// a partial object written by an older version keeps defaults for
			// the fields it lacks
			if err := s.Set(ctx, Snapshot{KeyOptions: []byte(`{"parallel":3}`)}); err != nil {
				t.Fatalf("set: %v", err)
			}
			opts, found, err = LoadOptions(ctx, s, defaults)
			if err != nil || !found {
				t.Fatalf("load: found=%v err=%v", found, err)
			}
			if opts.Parallel != 3 || opts.TimeoutMs != 8000 || !opts.SplitIntoFolders {
				t.Fatalf("unexpected merge %+v", opts)
			}
		})
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			recs, err := LoadRecords(ctx, s)
			if err != nil || len(recs) != 0 {
				t.Fatalf("want empty records, got %v err=%v", recs, err)
			}
			at := time.UnixMilli(1700000000123)
			in := models.RecordsMap{
				"https://a.example/": {URL: "https://a.example/", Title: "A, with comma", Tags: []string{"alpha"}, Category: "Alpha", OK: true, LastFetchedAt: at},
				"https://b.example/": {URL: "https://b.example/", Tags: []string{}, Error: "HTTP 500", LastFetchedAt: at},
			}
			if err := SaveRecords(ctx, s, in); err != nil {
				t.Fatalf("save: %v", err)
			}
			out, err := LoadRecords(ctx, s)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(out) != 2 {
				t.Fatalf("want 2 records, got %d", len(out))
			}
			a := out["https://a.example/"]
			if a.Title != "A, with comma" || !a.OK || a.Category != "Alpha" || !a.LastFetchedAt.Equal(at) {
				t.Fatalf("unexpected record %+v", a)
			}
			if b := out["https://b.example/"]; b.OK || b.Error != "HTTP 500" || b.Category != "" {
				t.Fatalf("unexpected record %+v", b)
			}

			if err := SaveRecords(ctx, s, models.RecordsMap{}); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if out, _ := LoadRecords(ctx, s); len(out) != 0 {
				t.Fatalf("want cleared records, got %d", len(out))
			}
		})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			csv, at, err := LoadCSV(ctx, s)
			if err != nil || csv != "" || !at.IsZero() {
				t.Fatalf("want nothing stored, got %q %v %v", csv, at, err)
			}
			now := time.UnixMilli(1700000000000)
			if err := SaveCSV(ctx, s, "url,title\nx,y", now); err != nil {
				t.Fatalf("save: %v", err)
			}
			csv, at, err = LoadCSV(ctx, s)
			if err != nil || csv != "url,title\nx,y" || !at.Equal(now) {
				t.Fatalf("unexpected %q %v %v", csv, at, err)
			}
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", "x"); err == nil {
		t.Fatal("want error for unknown driver")
	}
	s, err := Open(context.Background(), "memory", "")
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("want *Memory, got %T", s)
	}
}
