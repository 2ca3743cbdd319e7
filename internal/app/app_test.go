package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/config"
	"bookmark-cataloger/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store = config.Store{Driver: "memory"}
	cfg.Bookmarks.Path = filepath.Join(t.TempDir(), "bookmarks.html")
	return cfg
}

func TestOpenTreeFallbacks(t *testing.T) {
	dir := t.TempDir()

	empty, err := OpenTree(filepath.Join(dir, "missing.html"), "")
	if err != nil {
		t.Fatal(err)
	}
	roots, _ := empty.GetTree(context.Background())
	if len(roots[0].Children) != 1 || roots[0].Children[0].Title != "Bookmarks bar" {
		t.Fatalf("unexpected empty tree %+v", roots[0].Children)
	}

	list := filepath.Join(dir, "urls.csv")
	if err := os.WriteFile(list, []byte("url\nhttps://a.example/\nhttps://b.example/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	imported, err := OpenTree("", list)
	if err != nil {
		t.Fatal(err)
	}
	roots, _ = imported.GetTree(context.Background())
	if got := bookmarks.FlattenURLs(roots); len(got) != 2 {
		t.Fatalf("urls = %v", got)
	}
}

func TestNewAndCloseSavesBookmarks(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, logger.Discard(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Service.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.Bookmarks.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Bookmarks bar") {
		t.Fatalf("saved file = %s", data)
	}
}

func TestImportedTreeKeepsExistingFile(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.Bookmarks.Path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	list := filepath.Join(t.TempDir(), "urls.ndjson")
	if err := os.WriteFile(list, []byte(`{"url":"https://a.example/"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := New(context.Background(), cfg, logger.Discard(), Options{Input: list})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(cfg.Bookmarks.Path); string(data) != "original" {
		t.Fatalf("bookmark file overwritten: %q", data)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "mongo"
	if _, err := New(context.Background(), cfg, logger.Discard(), Options{}); err == nil {
		t.Fatal("want config error")
	}
}
