
package models

import (
	"encoding/json"
	"time"
)

// LinkRecord is the outcome of fetching and classifying one URL.
// Exactly one of Category (OK) or Error (!OK) is set.
type LinkRecord struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	Category      string    `json:"category,omitempty"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
	LastFetchedAt time.Time `json:"-"`
}

type linkRecordJSON struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	Category      string   `json:"category,omitempty"`
	OK            bool     `json:"ok"`
	Error         string   `json:"error,omitempty"`
	LastFetchedAt int64    `json:"lastFetchedAt"`
}

// MarshalJSON writes lastFetchedAt as Unix milliseconds.
func (r LinkRecord) MarshalJSON() ([]byte, error) {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	var ms int64
	if !r.LastFetchedAt.IsZero() {
		ms = r.LastFetchedAt.UnixMilli()
	}
	return json.Marshal(linkRecordJSON{
		URL:           r.URL,
		Title:         r.Title,
		Description:   r.Description,
		Tags:          tags,
		Category:      r.Category,
		OK:            r.OK,
		Error:         r.Error,
		LastFetchedAt: ms,
	})
}

func (r *LinkRecord) UnmarshalJSON(data []byte) error {
	var raw linkRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = LinkRecord{
		URL:         raw.URL,
		Title:       raw.Title,
		Description: raw.Description,
		Tags:        raw.Tags,
		Category:    raw.Category,
		OK:          raw.OK,
		Error:       raw.Error,
	}
	if raw.LastFetchedAt != 0 {
		r.LastFetchedAt = time.UnixMilli(raw.LastFetchedAt)
	}
	return nil
}

// RecordsMap maps a URL to its latest record.
type RecordsMap map[string]LinkRecord

// Clone returns a shallow copy of the map.
func (m RecordsMap) Clone() RecordsMap {
	out := make(RecordsMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ScanMode selects which URLs a scan revisits.
type ScanMode string

const (
	ModeAll     ScanMode = "all"
	ModeMissing ScanMode = "missing"
	ModeErrors  ScanMode = "errors"
	ModeStale   ScanMode = "stale"
	ModeResume  ScanMode = "resume"
)

// Valid reports whether m is a known mode. The empty mode means all.
func (m ScanMode) Valid() bool {
	switch m {
	case "", ModeAll, ModeMissing, ModeErrors, ModeStale, ModeResume:
		return true
	}
	return false
}

// DefaultStaleMs is the stale threshold used when StaleMs is unset (7 days).
const DefaultStaleMs int64 = 7 * 24 * 60 * 60 * 1000

type ScanOptions struct {
	LiftToDomain     bool     `json:"liftToDomain" yaml:"lift_to_domain"`
	TimeoutMs        int      `json:"timeoutMs" yaml:"timeout_ms"`
	Parallel         int      `json:"parallel" yaml:"parallel"`
	SplitIntoFolders bool     `json:"splitIntoFolders" yaml:"split_into_folders"`
	FlatMode         bool     `json:"flatMode" yaml:"flat_mode"`
	Mode             ScanMode `json:"mode,omitempty" yaml:"mode"`
	StaleMs          *int64   `json:"staleMs,omitempty" yaml:"stale_ms"`
	Limit            int      `json:"limit,omitempty" yaml:"limit"`
	Dedupe           bool     `json:"dedupe" yaml:"dedupe"`
}

// DefaultScanOptions mirrors the defaults written on first start.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		LiftToDomain:     false,
		TimeoutMs:        8000,
		Parallel:         6,
		SplitIntoFolders: true,
		FlatMode:         false,
	}
}

// Timeout returns the per-fetch timeout.
func (o ScanOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// StaleAfter returns the stale threshold. Only an absent StaleMs falls back
// to 7 days; an explicit 0 marks everything fetched before now as stale.
func (o ScanOptions) StaleAfter() time.Duration {
	if o.StaleMs == nil {
		return time.Duration(DefaultStaleMs) * time.Millisecond
	}
	if *o.StaleMs < 0 {
		return 0
	}
	return time.Duration(*o.StaleMs) * time.Millisecond
}

// EffectiveMode maps the empty mode to ModeAll.
func (o ScanOptions) EffectiveMode() ScanMode {
	if o.Mode == "" {
		return ModeAll
	}
	return o.Mode
}

// ScanOptionsPatch is a partial override; nil fields keep the base value.
type ScanOptionsPatch struct {
	LiftToDomain     *bool     `json:"liftToDomain,omitempty"`
	TimeoutMs        *int      `json:"timeoutMs,omitempty"`
	Parallel         *int      `json:"parallel,omitempty"`
	SplitIntoFolders *bool     `json:"splitIntoFolders,omitempty"`
	FlatMode         *bool     `json:"flatMode,omitempty"`
	Mode             *ScanMode `json:"mode,omitempty"`
	StaleMs          *int64    `json:"staleMs,omitempty"`
	Limit            *int      `json:"limit,omitempty"`
	Dedupe           *bool     `json:"dedupe,omitempty"`
}

// Apply returns base with every non-nil patch field written over it.
func (p ScanOptionsPatch) Apply(base ScanOptions) ScanOptions {
	if p.LiftToDomain != nil {
		base.LiftToDomain = *p.LiftToDomain
	}
	if p.TimeoutMs != nil {
		base.TimeoutMs = *p.TimeoutMs
	}
	if p.Parallel != nil {
		base.Parallel = *p.Parallel
	}
	if p.SplitIntoFolders != nil {
		base.SplitIntoFolders = *p.SplitIntoFolders
	}
	if p.FlatMode != nil {
		base.FlatMode = *p.FlatMode
	}
	if p.Mode != nil {
		base.Mode = *p.Mode
	}
	if p.StaleMs != nil {
		v := *p.StaleMs
		base.StaleMs = &v
	}
	if p.Limit != nil {
		base.Limit = *p.Limit
	}
	if p.Dedupe != nil {
		base.Dedupe = *p.Dedupe
	}
	return base
}

// ScanState is a point-in-time view of a running scan.
type ScanState struct {
	InProgress     bool        `json:"inProgress"`
	Paused         bool        `json:"paused"`
	Options        ScanOptions `json:"options"`
	RemainingQueue []string    `json:"remainingQueue"`
	TotalPlanned   int         `json:"totalPlanned"`
	StartedAt      time.Time   `json:"startedAt"`
}

// Node is a bookmark tree node. A node without URL is a folder.
type Node struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parentId,omitempty"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool { return n.URL == "" }

// TagHierarchy is the three-level tag taxonomy computed from tagged items.
// Level3 is keyed by HierarchyKey(l1, l2).
type TagHierarchy struct {
	Level1  []string            `json:"level1"`
	Level2  map[string][]string `json:"level2"`
	Level3  map[string][]string `json:"level3"`
	DocFreq map[string]int      `json:"docFreq"`
}

// HierarchyKey joins a level-1 and level-2 tag into a Level3 key.
func HierarchyKey(l1, l2 string) string { return l1 + "//" + l2 }

// PageMeta is the title and description pulled from a fetched page.
type PageMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
