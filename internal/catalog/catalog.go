// Package catalog places classified records into generated bookmark folders.
// Every strategy skips URLs already present in the target folder, so running
// it again on unchanged records creates nothing.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/ioformats"
	"bookmark-cataloger/internal/metrics"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/parser"
	"bookmark-cataloger/internal/store"
	"bookmark-cataloger/pkg/logger"
)

const (
	SortedTitle    = "SORTED"
	StructureTitle = "STRUCTURE"
	OtherTitle     = "Other"
	CSVTitlePrefix = "CSV Export"

	// DefaultReportURL is where the CSV bookmark points when no public
	// address is configured.
	DefaultReportURL = "http://localhost:8080/export"
)

type Cataloger struct {
	tree      bookmarks.Tree
	store     store.Store
	pub       events.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
	reportURL string
	now       func() time.Time
}

func New(tree bookmarks.Tree, st store.Store, pub events.Publisher) *Cataloger {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Cataloger{
		tree:      tree,
		store:     st,
		pub:       pub,
		log:       logger.Discard(),
		reportURL: DefaultReportURL,
		now:       time.Now,
	}
}

func (c *Cataloger) WithMetrics(m *metrics.Metrics) *Cataloger {
	c.metrics = m
	return c
}

func (c *Cataloger) WithLogger(l *logger.Logger) *Cataloger {
	if l != nil {
		c.log = l
	}
	return c
}

// WithReportURL sets the address of the report page the CSV bookmark opens.
func (c *Cataloger) WithReportURL(u string) *Cataloger {
	if u != "" {
		c.reportURL = u
	}
	return c
}

func (c *Cataloger) WithClock(now func() time.Time) *Cataloger {
	if now != nil {
		c.now = now
	}
	return c
}

// okRecords loads the records that were fetched successfully, ordered by URL.
func (c *Cataloger) okRecords(ctx context.Context) ([]models.LinkRecord, error) {
	records, err := store.LoadRecords(ctx, c.store)
	if err != nil {
		return nil, err
	}
	var out []models.LinkRecord
	for _, r := range ioformats.SortedRecords(records) {
		if r.OK {
			out = append(out, r)
		}
	}
	return out, nil
}

// RemoveInvalid drops every failed record and returns how many were dropped.
func (c *Cataloger) RemoveInvalid(ctx context.Context) (int, error) {
	records, err := store.LoadRecords(ctx, c.store)
	if err != nil {
		return 0, err
	}
	kept := make(models.RecordsMap, len(records))
	removed := 0
	for u, r := range records {
		if r.OK {
			kept[u] = r
		} else {
			removed++
		}
	}
	if err := store.SaveRecords(ctx, c.store, kept); err != nil {
		return 0, err
	}
	c.pub.Publish(events.Status(fmt.Sprintf("SORT: removed invalid: %d", removed)))
	return removed, nil
}

// SortedFolder finds the SORTED folder or creates it under the bookmarks bar.
func (c *Cataloger) SortedFolder(ctx context.Context) (*models.Node, error) {
	hits, err := c.tree.Search(ctx, SortedTitle)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", SortedTitle, err)
	}
	for _, n := range hits {
		if n.IsFolder() && n.Title == SortedTitle {
			return n, nil
		}
	}
	parentID, err := c.barID(ctx)
	if err != nil {
		return nil, err
	}
	return c.tree.Create(ctx, bookmarks.CreateRequest{ParentID: parentID, Title: SortedTitle})
}

// barID picks the bookmarks bar, falling back to the first top-level folder
// and then to the root itself.
func (c *Cataloger) barID(ctx context.Context) (string, error) {
	roots, err := c.tree.GetTree(ctx)
	if err != nil {
		return "", fmt.Errorf("read bookmark tree: %w", err)
	}
	if len(roots) == 0 {
		return "", fmt.Errorf("bookmark tree has no root")
	}
	root := roots[0]
	var first *models.Node
	for _, n := range root.Children {
		if !n.IsFolder() {
			continue
		}
		if parser.IsToolbarTitle(n.Title) {
			return n.ID, nil
		}
		if first == nil {
			first = n
		}
	}
	if first != nil {
		return first.ID, nil
	}
	return root.ID, nil
}

// childFolder returns the folder titled title directly under parentID,
// creating it when missing.
func (c *Cataloger) childFolder(ctx context.Context, parentID, title string) (*models.Node, error) {
	children, err := c.tree.GetChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, ch := range children {
		if ch.IsFolder() && ch.Title == title {
			return ch, nil
		}
	}
	return c.tree.Create(ctx, bookmarks.CreateRequest{ParentID: parentID, Title: title})
}

// placer creates links for one strategy run, remembering per folder which
// URLs are already there.
type placer struct {
	tree     bookmarks.Tree
	existing map[string]map[string]struct{}
	created  int
}

func newPlacer(tree bookmarks.Tree) *placer {
	return &placer{tree: tree, existing: map[string]map[string]struct{}{}}
}

func (p *placer) has(ctx context.Context, folderID, url string) (bool, error) {
	set, ok := p.existing[folderID]
	if !ok {
		children, err := p.tree.GetChildren(ctx, folderID)
		if err != nil {
			return false, err
		}
		set = make(map[string]struct{}, len(children))
		for _, ch := range children {
			if ch.URL != "" {
				set[ch.URL] = struct{}{}
			}
		}
		p.existing[folderID] = set
	}
	_, found := set[url]
	return found, nil
}

// place links url into folderID unless it is already there.
func (p *placer) place(ctx context.Context, folderID, title, url string) error {
	found, err := p.has(ctx, folderID, url)
	if err != nil || found {
		return err
	}
	if title == "" {
		title = url
	}
	if _, err := p.tree.Create(ctx, bookmarks.CreateRequest{ParentID: folderID, Title: title, URL: url}); err != nil {
		return fmt.Errorf("create link %s: %w", url, err)
	}
	p.existing[folderID][url] = struct{}{}
	p.created++
	return nil
}

// SaveCSVBookmark stores the current CSV report and points a "CSV Export"
// bookmark in folderID at the report page, reusing an earlier one.
func (c *Cataloger) SaveCSVBookmark(ctx context.Context, folderID string) error {
	records, err := store.LoadRecords(ctx, c.store)
	if err != nil {
		return err
	}
	csv, err := ioformats.ComputeCSV(records)
	if err != nil {
		return err
	}
	now := c.now()
	if err := store.SaveCSV(ctx, c.store, csv, now); err != nil {
		return err
	}

	title := fmt.Sprintf("%s (%s) %s", CSVTitlePrefix, SortedTitle, now.Format("2006-01-02 15:04:05"))
	children, err := c.tree.GetChildren(ctx, folderID)
	if err != nil {
		return err
	}
	for _, ch := range children {
		if !ch.IsFolder() && (ch.URL == c.reportURL || strings.HasPrefix(ch.Title, CSVTitlePrefix)) {
			u := c.reportURL
			_, err := c.tree.Update(ctx, ch.ID, bookmarks.UpdateRequest{Title: &title, URL: &u})
			return err
		}
	}
	_, err = c.tree.Create(ctx, bookmarks.CreateRequest{ParentID: folderID, Title: title, URL: c.reportURL})
	return err
}

// saveCSVQuietly is SaveCSVBookmark for callers that must not fail on it.
func (c *Cataloger) saveCSVQuietly(ctx context.Context, folderID string) {
	if err := c.SaveCSVBookmark(ctx, folderID); err != nil {
		c.log.Debugf("csv bookmark: %v", err)
	}
}
