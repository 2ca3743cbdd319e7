package api

import (
	"sort"

	"bookmark-cataloger/internal/models"
)

// topTagLimit is how many tags the report page lists.
const topTagLimit = 20

type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	// FontPx scales with Count between 10 and 16.
	FontPx int `json:"fontPx"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	// Percent is relative to the largest category.
	Percent float64 `json:"percent"`
}

// Analytics summarizes a records map for the report page.
type Analytics struct {
	Total      int             `json:"total"`
	Valid      int             `json:"valid"`
	Errors     int             `json:"errors"`
	UniqueTags int             `json:"uniqueTags"`
	TopTags    []TagCount      `json:"topTags"`
	Categories []CategoryCount `json:"categories"`
}

// Summarize counts records, tags and categories. Ties keep URL order.
func Summarize(records models.RecordsMap) Analytics {
	urls := make([]string, 0, len(records))
	for u := range records {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	a := Analytics{Total: len(records)}
	tagFreq := map[string]int{}
	var tagOrder []string
	catFreq := map[string]int{}
	var catOrder []string
	for _, u := range urls {
		r := records[u]
		if r.OK {
			a.Valid++
		}
		for _, t := range r.Tags {
			if t == "" {
				continue
			}
			if tagFreq[t] == 0 {
				tagOrder = append(tagOrder, t)
			}
			tagFreq[t]++
		}
		if r.Category != "" {
			if catFreq[r.Category] == 0 {
				catOrder = append(catOrder, r.Category)
			}
			catFreq[r.Category]++
		}
	}
	a.Errors = a.Total - a.Valid
	a.UniqueTags = len(tagFreq)

	sort.SliceStable(tagOrder, func(i, j int) bool { return tagFreq[tagOrder[i]] > tagFreq[tagOrder[j]] })
	if len(tagOrder) > topTagLimit {
		tagOrder = tagOrder[:topTagLimit]
	}
	for _, t := range tagOrder {
		n := tagFreq[t]
		a.TopTags = append(a.TopTags, TagCount{Name: t, Count: n, FontPx: max(10, min(16, 10+n*2))})
	}

	sort.SliceStable(catOrder, func(i, j int) bool { return catFreq[catOrder[i]] > catFreq[catOrder[j]] })
	for _, c := range catOrder {
		n := catFreq[c]
		a.Categories = append(a.Categories, CategoryCount{
			Name:    c,
			Count:   n,
			Percent: float64(n) / float64(catFreq[catOrder[0]]) * 100,
		})
	}
	return a
}
