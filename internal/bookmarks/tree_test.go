package bookmarks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"bookmark-cataloger/internal/models"
)

func sampleRoots() []*models.Node {
	return []*models.Node{
		{Title: "Bookmarks bar", Children: []*models.Node{
			{Title: "Go", URL: "https://go.dev/"},
			{Title: "Dev", Children: []*models.Node{
				{Title: "GitHub", URL: "https://github.com/"},
			}},
		}},
		{Title: "Other bookmarks", Children: []*models.Node{
			{Title: "Example", URL: "https://example.com/page"},
		}},
	}
}

func TestMemoryTreeOperations(t *testing.T) {
	ctx := context.Background()
	tr := NewMemory(sampleRoots())
	if tr.Count() != 6 {
		t.Fatalf("count = %d", tr.Count())
	}

	tree, err := tr.GetTree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) != 1 || tree[0].ID != RootID || len(tree[0].Children) != 2 {
		t.Fatalf("unexpected tree shape %+v", tree)
	}
	want := []string{"https://go.dev/", "https://github.com/", "https://example.com/page"}
	if got := FlattenURLs(tree); !reflect.DeepEqual(got, want) {
		t.Fatalf("flatten = %v", got)
	}

	bar := tree[0].Children[0]
	folder, err := tr.Create(ctx, CreateRequest{ParentID: bar.ID, Title: "SORTED"})
	if err != nil {
		t.Fatal(err)
	}
	if folder.ID == "" || folder.ParentID != bar.ID || !folder.IsFolder() {
		t.Fatalf("unexpected folder %+v", folder)
	}
	link, err := tr.Create(ctx, CreateRequest{ParentID: folder.ID, Title: "x", URL: "https://x.example/"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Create(ctx, CreateRequest{ParentID: link.ID, Title: "nope"}); err == nil {
		t.Fatal("want error creating under a link")
	}
	if _, err := tr.Create(ctx, CreateRequest{ParentID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	children, err := tr.GetChildren(ctx, folder.ID)
	if err != nil || len(children) != 1 || children[0].URL != "https://x.example/" {
		t.Fatalf("children = %+v err=%v", children, err)
	}

	title := "renamed"
	if _, err := tr.Update(ctx, link.ID, UpdateRequest{Title: &title}); err != nil {
		t.Fatal(err)
	}
	hits, _ := tr.Search(ctx, "RENAMED")
	if len(hits) != 1 || hits[0].ID != link.ID || hits[0].URL != "https://x.example/" {
		t.Fatalf("search = %+v", hits)
	}
	hits, _ = tr.Search(ctx, "sorted")
	if len(hits) != 1 || hits[0].ID != folder.ID {
		t.Fatalf("search folder = %+v", hits)
	}
}

func TestReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	tr := NewMemory(sampleRoots())
	tree, _ := tr.GetTree(ctx)
	tree[0].Children[0].Title = "mutated"
	again, _ := tr.GetTree(ctx)
	if again[0].Children[0].Title != "Bookmarks bar" {
		t.Fatal("tree was mutated through a read")
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookmarks.html")
	tr := NewMemory(sampleRoots())
	if err := tr.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := tr.GetTree(context.Background())
	b, _ := loaded.GetTree(context.Background())
	if !reflect.DeepEqual(FlattenURLs(a), FlattenURLs(b)) {
		t.Fatalf("urls differ: %v vs %v", FlattenURLs(a), FlattenURLs(b))
	}
	if loaded.Count() != tr.Count() {
		t.Fatalf("count %d vs %d", loaded.Count(), tr.Count())
	}
}

func TestFromURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.ndjson")
	os.WriteFile(path, []byte("https://a.example\nhttps://b.example\n"), 0o644)
	tr, err := FromURLs(path)
	if err != nil {
		t.Fatal(err)
	}
	tree, _ := tr.GetTree(context.Background())
	if got := FlattenURLs(tree); !reflect.DeepEqual(got, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("urls = %v", got)
	}
}
