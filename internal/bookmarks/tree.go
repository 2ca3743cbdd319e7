// Package bookmarks provides the bookmark tree the cataloger reads from and
// writes its generated folders into.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bookmark-cataloger/internal/ioformats"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/parser"
)

// ErrNotFound is returned for unknown node IDs.
var ErrNotFound = errors.New("bookmark node not found")

// CreateRequest describes a new folder (URL empty) or link.
type CreateRequest struct {
	ParentID string
	Title    string
	URL      string
}

// UpdateRequest changes the fields that are non-nil.
type UpdateRequest struct {
	Title *string
	URL   *string
}

// Tree is the bookmark-tree collaborator. Implementations never delete.
type Tree interface {
	GetTree(ctx context.Context) ([]*models.Node, error)
	GetChildren(ctx context.Context, id string) ([]*models.Node, error)
	Create(ctx context.Context, req CreateRequest) (*models.Node, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*models.Node, error)
	Search(ctx context.Context, title string) ([]*models.Node, error)
}

// RootID is the ID of the invisible root that holds the top-level folders.
const RootID = "0"

// Memory is an in-process Tree. Reads return deep copies so callers cannot
// mutate the tree behind its lock.
type Memory struct {
	mu    sync.RWMutex
	root  *models.Node
	index map[string]*models.Node
	newID func() string
}

// NewMemory returns a tree whose root holds copies of roots.
func NewMemory(roots []*models.Node) *Memory {
	m := &Memory{
		root:  &models.Node{ID: RootID},
		index: map[string]*models.Node{},
		newID: uuid.NewString,
	}
	m.index[RootID] = m.root
	for _, n := range roots {
		m.attach(m.root, n)
	}
	return m
}

func (m *Memory) attach(parent, n *models.Node) {
	c := &models.Node{ID: n.ID, ParentID: parent.ID, Title: n.Title, URL: n.URL}
	if c.ID == "" || m.index[c.ID] != nil {
		c.ID = m.newID()
	}
	m.index[c.ID] = c
	parent.Children = append(parent.Children, c)
	for _, ch := range n.Children {
		m.attach(c, ch)
	}
}

// LoadFile reads a Netscape bookmark file.
func LoadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	roots, err := parser.ReadBookmarks(f)
	if err != nil {
		return nil, err
	}
	return NewMemory(roots), nil
}

// FromURLs builds a single-folder tree from a CSV or NDJSON URL list.
func FromURLs(path string) (*Memory, error) {
	urls, err := ioformats.ReadURLs(path)
	if err != nil {
		return nil, fmt.Errorf("read urls: %w", err)
	}
	folder := &models.Node{Title: "Imported"}
	for _, u := range urls {
		folder.Children = append(folder.Children, &models.Node{Title: u, URL: u})
	}
	return NewMemory([]*models.Node{folder}), nil
}

// SaveFile writes the tree as a Netscape bookmark file.
func (m *Memory) SaveFile(path string) error {
	m.mu.RLock()
	roots := cloneAll(m.root.Children)
	m.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := parser.WriteBookmarks(f, roots); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// GetTree returns the root node with the whole tree below it.
func (m *Memory) GetTree(_ context.Context) ([]*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return []*models.Node{clone(m.root)}, nil
}

func (m *Memory) GetChildren(_ context.Context, id string) ([]*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]*models.Node, len(n.Children))
	for i, c := range n.Children {
		out[i] = shallow(c)
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, req CreateRequest) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.index[req.ParentID]
	if !ok {
		return nil, fmt.Errorf("%w: parent %s", ErrNotFound, req.ParentID)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("parent %s is not a folder", req.ParentID)
	}
	n := &models.Node{ID: m.newID(), ParentID: parent.ID, Title: req.Title, URL: req.URL}
	m.index[n.ID] = n
	parent.Children = append(parent.Children, n)
	return shallow(n), nil
}

func (m *Memory) Update(_ context.Context, id string, req UpdateRequest) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.index[id]
	if !ok || id == RootID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if req.Title != nil {
		n.Title = *req.Title
	}
	if req.URL != nil {
		if n.IsFolder() && len(n.Children) > 0 && *req.URL != "" {
			return nil, fmt.Errorf("cannot turn folder %s into a link", id)
		}
		n.URL = *req.URL
	}
	return shallow(n), nil
}

// Search matches nodes whose title contains title, case-insensitively, in
// depth-first order.
func (m *Memory) Search(_ context.Context, title string) ([]*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(title)
	var out []*models.Node
	var walk func(n *models.Node)
	walk = func(n *models.Node) {
		if n.ID != RootID && strings.Contains(strings.ToLower(n.Title), q) {
			out = append(out, shallow(n))
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(m.root)
	return out, nil
}

// Count returns the number of nodes below the root.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index) - 1
}

func shallow(n *models.Node) *models.Node {
	return &models.Node{ID: n.ID, ParentID: n.ParentID, Title: n.Title, URL: n.URL}
}

func clone(n *models.Node) *models.Node {
	c := shallow(n)
	c.Children = cloneAll(n.Children)
	return c
}

func cloneAll(nodes []*models.Node) []*models.Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*models.Node, len(nodes))
	for i, n := range nodes {
		out[i] = clone(n)
	}
	return out
}

// FlattenURLs lists every link URL depth-first, preserving order.
func FlattenURLs(nodes []*models.Node) []string {
	var urls []string
	var walk func(n *models.Node)
	walk = func(n *models.Node) {
		if n.URL != "" {
			urls = append(urls, n.URL)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return urls
}
