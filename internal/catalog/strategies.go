package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bookmark-cataloger/internal/classifier"
	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/models"
)

// Strategy names, used for metrics labels.
const (
	StrategyFlat      = "flat"
	StrategyMirror    = "mirror"
	StrategyTopTags   = "top7"
	StrategyIntegrate = "integrate"
)

// TopTagFolders is how many tag folders the top-tags strategy creates next to
// Other.
const TopTagFolders = 7

const topTagMinCount = 2

// TopCategoryFolders is how many categories integrate keeps at the first
// level; the rest go under Other.
const TopCategoryFolders = 12

const defaultCategory = "Misc"

// Flat puts every ok record directly under SORTED.
func (c *Cataloger) Flat(ctx context.Context, lift, dedupe bool) (int, error) {
	items, err := c.okRecords(ctx)
	if err != nil {
		return 0, err
	}
	if lift {
		for i := range items {
			items[i].URL = crawler.LiftToDomain(items[i].URL)
		}
	}
	if dedupe {
		seen := make(map[string]struct{}, len(items))
		kept := items[:0]
		for _, r := range items {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			kept = append(kept, r)
		}
		items = kept
	}

	root, err := c.SortedFolder(ctx)
	if err != nil {
		return 0, err
	}
	p := newPlacer(c.tree)
	for _, r := range items {
		if err := p.place(ctx, root.ID, r.Title, r.URL); err != nil {
			return p.created, err
		}
	}
	c.metrics.LinksCreated(StrategyFlat, p.created)
	c.pub.Publish(events.Status(fmt.Sprintf("SORT(flat): added %d links under %s", p.created, SortedTitle)))
	c.saveCSVQuietly(ctx, root.ID)
	return p.created, nil
}

// Mirror recreates the original folder structure under SORTED/STRUCTURE for
// links whose URL has an ok record. With dedupe a target URL appears once in
// the whole mirror. The SORTED folder itself is never mirrored.
func (c *Cataloger) Mirror(ctx context.Context, lift, dedupe bool) (int, error) {
	items, err := c.okRecords(ctx)
	if err != nil {
		return 0, err
	}
	okSet := make(map[string]struct{}, len(items))
	for _, r := range items {
		okSet[r.URL] = struct{}{}
	}

	root, err := c.SortedFolder(ctx)
	if err != nil {
		return 0, err
	}
	structure, err := c.childFolder(ctx, root.ID, StructureTitle)
	if err != nil {
		return 0, err
	}
	roots, err := c.tree.GetTree(ctx)
	if err != nil {
		return 0, fmt.Errorf("read bookmark tree: %w", err)
	}

	p := newPlacer(c.tree)
	folders := map[string]string{"": structure.ID}
	seen := map[string]struct{}{}

	folderFor := func(path []string) (string, error) {
		key := strings.Join(path, "\x00")
		if id, ok := folders[key]; ok {
			return id, nil
		}
		parent := structure.ID
		for _, seg := range path {
			f, err := c.childFolder(ctx, parent, seg)
			if err != nil {
				return "", err
			}
			parent = f.ID
		}
		folders[key] = parent
		return parent, nil
	}

	var walk func(n *models.Node, path []string) error
	walk = func(n *models.Node, path []string) error {
		if n.ID == root.ID {
			return nil
		}
		if n.URL != "" {
			if _, ok := okSet[n.URL]; !ok {
				return nil
			}
			target := n.URL
			if lift {
				target = crawler.LiftToDomain(target)
			}
			if dedupe {
				if _, dup := seen[target]; dup {
					return nil
				}
			}
			seen[target] = struct{}{}
			folderID, err := folderFor(path)
			if err != nil {
				return err
			}
			return p.place(ctx, folderID, n.Title, target)
		}
		next := path
		if n.Title != "" {
			next = append(append([]string(nil), path...), n.Title)
		}
		for _, ch := range n.Children {
			if err := walk(ch, next); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range roots {
		if err := walk(n, nil); err != nil {
			return p.created, err
		}
	}

	c.metrics.LinksCreated(StrategyMirror, p.created)
	c.pub.Publish(events.Status(fmt.Sprintf("%s mirror updated under %s/%s: added %d links", StructureTitle, SortedTitle, StructureTitle, p.created)))
	c.saveCSVQuietly(ctx, root.ID)
	return p.created, nil
}

// TopTags makes one folder per top-7 tag plus Other. A record goes to the
// folder of its first own tag that made the top 7, else to Other.
func (c *Cataloger) TopTags(ctx context.Context) (int, error) {
	items, err := c.okRecords(ctx)
	if err != nil {
		return 0, err
	}
	tagSets := make([][]string, len(items))
	for i, r := range items {
		tagSets[i] = r.Tags
	}
	h := classifier.BuildHierarchy(tagSets, classifier.HierarchyConfig{
		MaxLevel1: TopTagFolders,
		MaxLevel2: 1,
		MaxLevel3: 1,
		MinCount:  topTagMinCount,
	})

	root, err := c.SortedFolder(ctx)
	if err != nil {
		return 0, err
	}
	other, err := c.childFolder(ctx, root.ID, OtherTitle)
	if err != nil {
		return 0, err
	}
	tagFolders := make(map[string]string, len(h.Level1))
	for _, t := range h.Level1 {
		f, err := c.childFolder(ctx, root.ID, t)
		if err != nil {
			return 0, err
		}
		tagFolders[t] = f.ID
	}

	p := newPlacer(c.tree)
	for _, r := range items {
		target := other.ID
		for _, t := range r.Tags {
			if id, ok := tagFolders[t]; ok {
				target = id
				break
			}
		}
		if err := p.place(ctx, target, r.Title, r.URL); err != nil {
			return p.created, err
		}
	}
	c.metrics.LinksCreated(StrategyTopTags, p.created)
	c.pub.Publish(events.Status(fmt.Sprintf("%s: added %d links (Top%d + %s, flat)", SortedTitle, p.created, TopTagFolders, OtherTitle)))
	c.saveCSVQuietly(ctx, root.ID)
	return p.created, nil
}

// IntegratePhase names the integrate run in PHASE and DONE events.
const IntegratePhase = "INTEGRATE_SORTED"

// Integrate groups ok records by category. The 12 largest categories get a
// folder under SORTED; every other category gets its own folder under
// SORTED/Other.
func (c *Cataloger) Integrate(ctx context.Context) (int, error) {
	c.pub.Publish(events.Phase(IntegratePhase, "start"))
	items, err := c.okRecords(ctx)
	if err != nil {
		return 0, err
	}
	root, err := c.SortedFolder(ctx)
	if err != nil {
		return 0, err
	}

	groups := map[string][]models.LinkRecord{}
	var order []string
	for _, r := range items {
		cat := r.Category
		if cat == "" {
			cat = defaultCategory
		}
		if _, ok := groups[cat]; !ok {
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], r)
	}
	sort.SliceStable(order, func(i, j int) bool { return len(groups[order[i]]) > len(groups[order[j]]) })
	top, rest := order, []string(nil)
	if len(order) > TopCategoryFolders {
		top, rest = order[:TopCategoryFolders], order[TopCategoryFolders:]
	}

	p := newPlacer(c.tree)
	fill := func(parentID, cat string) error {
		f, err := c.childFolder(ctx, parentID, cat)
		if err != nil {
			return err
		}
		for _, r := range groups[cat] {
			if err := p.place(ctx, f.ID, r.Title, r.URL); err != nil {
				return err
			}
		}
		return nil
	}
	for _, cat := range top {
		if err := fill(root.ID, cat); err != nil {
			return p.created, err
		}
	}
	if len(rest) > 0 {
		other, err := c.childFolder(ctx, root.ID, OtherTitle)
		if err != nil {
			return p.created, err
		}
		for _, cat := range rest {
			if err := fill(other.ID, cat); err != nil {
				return p.created, err
			}
		}
	}

	c.metrics.LinksCreated(StrategyIntegrate, p.created)
	c.pub.Publish(events.Status(fmt.Sprintf("%s: added %d links (top %d first-level, %d in %s)", SortedTitle, p.created, len(top), len(rest), OtherTitle)))
	c.saveCSVQuietly(ctx, root.ID)
	c.pub.Publish(events.Done(IntegratePhase))
	return p.created, nil
}

// SortPhase names the sort run in PHASE and DONE events.
const SortPhase = "SORT"

// NoOrganizationNotice is published when sort has nothing to do besides
// removing invalid records.
const NoOrganizationNotice = "No organization selected - only invalid links removed"

// Sort removes invalid records and then runs exactly one strategy: flat when
// FlatMode is set, else top tags when SplitIntoFolders is set, else mirror
// when lifting or deduping, else nothing.
func (c *Cataloger) Sort(ctx context.Context, opts models.ScanOptions) error {
	c.pub.Publish(events.Phase(SortPhase, "start"))
	if _, err := c.RemoveInvalid(ctx); err != nil {
		return err
	}
	var err error
	switch {
	case opts.FlatMode:
		_, err = c.Flat(ctx, opts.LiftToDomain, opts.Dedupe)
	case opts.SplitIntoFolders:
		_, err = c.TopTags(ctx)
	case opts.LiftToDomain || opts.Dedupe:
		_, err = c.Mirror(ctx, opts.LiftToDomain, opts.Dedupe)
	default:
		c.pub.Publish(events.Status(NoOrganizationNotice))
	}
	if err != nil {
		return err
	}
	c.pub.Publish(events.Done(SortPhase))
	return nil
}
