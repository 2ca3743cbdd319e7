
package classifier

import (
	"sort"

	"bookmark-cataloger/internal/models"
)

// HierarchyConfig bounds the width of each taxonomy level and the minimum
// number of items a tag must appear in to be selected.
type HierarchyConfig struct {
	MaxLevel1 int
	MaxLevel2 int
	MaxLevel3 int
	MinCount  int
}

func DefaultHierarchyConfig() HierarchyConfig {
	return HierarchyConfig{MaxLevel1: 12, MaxLevel2: 8, MaxLevel3: 6, MinCount: 3}
}

// counter counts tags and remembers the order they were first seen so that
// equal counts rank deterministically.
type counter struct {
	n     map[string]int
	order []string
}

func newCounter() *counter { return &counter{n: map[string]int{}} }

func (c *counter) inc(tag string) {
	if _, ok := c.n[tag]; !ok {
		c.order = append(c.order, tag)
	}
	c.n[tag]++
}

// top returns up to limit tags with count >= min, most frequent first.
func (c *counter) top(min, limit int) []string {
	out := make([]string, 0, len(c.order))
	for _, t := range c.order {
		if c.n[t] >= min {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return c.n[out[i]] > c.n[out[j]] })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func hasAll(tags []string, required ...string) bool {
	for _, r := range required {
		found := false
		for _, t := range tags {
			if t == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// BuildHierarchy computes the level-1/2/3 taxonomy from the tag lists of
// items. Each tag counts at most once per item.
func BuildHierarchy(items [][]string, cfg HierarchyConfig) models.TagHierarchy {
	docFreq := newCounter()
	for _, tags := range items {
		for _, t := range uniqueTags(tags) {
			docFreq.inc(t)
		}
	}

	h := models.TagHierarchy{
		Level1:  docFreq.top(cfg.MinCount, cfg.MaxLevel1),
		Level2:  map[string][]string{},
		Level3:  map[string][]string{},
		DocFreq: docFreq.n,
	}

	for _, l1 := range h.Level1 {
		counts2 := newCounter()
		for _, tags := range items {
			if !hasAll(tags, l1) {
				continue
			}
			for _, t := range uniqueTags(tags) {
				if t != l1 {
					counts2.inc(t)
				}
			}
		}
		l2s := counts2.top(cfg.MinCount, cfg.MaxLevel2)
		h.Level2[l1] = l2s

		for _, l2 := range l2s {
			counts3 := newCounter()
			for _, tags := range items {
				if !hasAll(tags, l1, l2) {
					continue
				}
				for _, t := range uniqueTags(tags) {
					if t != l1 && t != l2 {
						counts3.inc(t)
					}
				}
			}
			h.Level3[models.HierarchyKey(l1, l2)] = counts3.top(cfg.MinCount, cfg.MaxLevel3)
		}
	}
	return h
}

// AssignPath places one item in the hierarchy. The path has 1 to 3
// segments; items without any level-1 tag get their hostname or "Misc".
func AssignPath(rawURL string, tags []string, h models.TagHierarchy) []string {
	ranked := uniqueTags(tags)
	sort.SliceStable(ranked, func(i, j int) bool {
		return h.DocFreq[ranked[i]] > h.DocFreq[ranked[j]]
	})

	l1 := firstIn(ranked, h.Level1)
	if l1 == "" {
		if host := Hostname(rawURL); host != "" {
			return []string{host}
		}
		return []string{"Misc"}
	}

	rest := without(ranked, l1)
	l2 := firstIn(rest, h.Level2[l1])
	if l2 == "" {
		return []string{l1}
	}

	l3 := firstIn(without(rest, l2), h.Level3[models.HierarchyKey(l1, l2)])
	if l3 == "" {
		return []string{l1, l2}
	}
	return []string{l1, l2, l3}
}

func firstIn(candidates, allowed []string) string {
	for _, c := range candidates {
		for _, a := range allowed {
			if c == a {
				return c
			}
		}
	}
	return ""
}

func without(tags []string, drop string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != drop {
			out = append(out, t)
		}
	}
	return out
}
