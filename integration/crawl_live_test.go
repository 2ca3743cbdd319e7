//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/classifier"
	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/parser"
	"bookmark-cataloger/internal/service"
	"bookmark-cataloger/internal/store"
)

const livePage = "https://go.dev/doc/tutorial/getting-started"

func TestLivePageClassification(t *testing.T) {
	client := crawler.NewHTTPClient(25*time.Second, 5*time.Second, 5*1024*1024)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	resp, err := client.Fetch(ctx, livePage, 20*time.Second)
	if err != nil {
		t.Skipf("skipping: fetch failed due to network: %v", err)
		return
	}

	meta := parser.New().Extract(resp.Body, resp.ContentType)
	if meta.Title == "" {
		t.Fatalf("expected a title from %s", livePage)
	}
	class := classifier.New().Classify(livePage, meta)
	if len(class.Tags) == 0 {
		t.Errorf("expected tags for %q", meta.Title)
	}
	if class.Category == "" {
		t.Errorf("expected a category")
	}
}

func TestLiveScanAndSort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tree := bookmarks.NewMemory([]*models.Node{
		{Title: "Bookmarks bar", Children: []*models.Node{
			{Title: "Go", URL: livePage},
			{Title: "Nowhere", URL: "https://nonexistent.invalid/"},
		}},
	})
	svc := service.New(ctx, service.Deps{
		Tree:     tree,
		Store:    store.NewMemory(),
		Fetcher:  crawler.NewHTTPClient(25*time.Second, 5*time.Second, 5*1024*1024),
		Defaults: models.DefaultScanOptions(),
	})
	sum, err := svc.RunScan(ctx, models.ScanOptionsPatch{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.OK == 0 {
		t.Skipf("skipping: no page reachable (failed=%d)", sum.Failed)
	}
	if sum.Failed != 1 {
		t.Errorf("expected the .invalid host to fail, got %+v", sum)
	}
	if err := svc.Sort(ctx); err != nil {
		t.Fatal(err)
	}
	hits, _ := tree.Search(ctx, "SORTED")
	if len(hits) != 1 {
		t.Fatalf("expected one SORTED folder, got %d", len(hits))
	}
}
