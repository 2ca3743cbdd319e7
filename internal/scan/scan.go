// Package scan turns the bookmark tree into a fetch queue and fills the
// records map by fetching and classifying every queued URL.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/classifier"
	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/metrics"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/parser"
	"bookmark-cataloger/internal/store"
	"bookmark-cataloger/pkg/logger"
)

// PhaseName names the scan in PHASE and DONE events.
const PhaseName = "SCAN"

// DefaultFlushEvery is how many completions pass between record snapshots.
const DefaultFlushEvery = 25

// Summary counts the outcome of one scan.
type Summary struct {
	Planned int `json:"planned"`
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
}

type Scanner struct {
	tree       bookmarks.Tree
	store      store.Store
	fetcher    crawler.Fetcher
	parser     *parser.Parser
	classifier *classifier.Classifier
	pub        events.Publisher
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
	flushEvery int
}

func New(tree bookmarks.Tree, st store.Store, f crawler.Fetcher, pub events.Publisher) *Scanner {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Scanner{
		tree:       tree,
		store:      st,
		fetcher:    f,
		parser:     parser.New(),
		classifier: classifier.New(),
		pub:        pub,
		log:        logger.Discard(),
		now:        time.Now,
		flushEvery: DefaultFlushEvery,
	}
}

func (s *Scanner) WithMetrics(m *metrics.Metrics) *Scanner {
	s.metrics = m
	return s
}

func (s *Scanner) WithLogger(l *logger.Logger) *Scanner {
	if l != nil {
		s.log = l
	}
	return s
}

// WithClock replaces time.Now for record timestamps and stale checks.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Scanner) WithFlushEvery(n int) *Scanner {
	if n > 0 {
		s.flushEvery = n
	}
	return s
}

// Run scans the URLs of the bookmark tree selected by opts. Records of URLs
// outside this scan are kept. Fetch failures become failure records; only
// tree or store errors fail the scan.
func (s *Scanner) Run(ctx context.Context, job *Job, opts models.ScanOptions) (Summary, error) {
	s.pub.Publish(events.Phase(PhaseName, "start"))

	roots, err := s.tree.GetTree(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read bookmark tree: %w", err)
	}
	results, err := store.LoadRecords(ctx, s.store)
	if err != nil {
		return Summary{}, err
	}

	now := s.now()
	queue := Select(Normalize(bookmarks.FlattenURLs(roots), opts), results, opts, now)
	total := len(queue)
	s.log.Infof("scan planned %d urls (mode=%s parallel=%d)", total, opts.EffectiveMode(), crawler.ClampParallel(opts.Parallel))

	job.start(opts, queue, now)
	defer job.finish()
	s.metrics.ScanRunning(true)
	defer s.metrics.ScanRunning(false)

	var (
		mu         sync.Mutex
		completed  int
		sinceFlush int
		sum        = Summary{Planned: total}
	)
	crawler.ProcessInBatches(ctx, queue, opts.Parallel, func(ctx context.Context, url string) {
		// a cancelled wait falls through; the fetch then fails on ctx
		_ = job.wait(ctx)
		rec := s.fetchOne(ctx, url, opts.Timeout())

		mu.Lock()
		defer mu.Unlock()
		results[url] = rec
		if rec.OK {
			sum.OK++
		} else {
			sum.Failed++
		}
		completed++
		sinceFlush++
		job.complete(url)
		s.pub.Publish(events.Progress(completed, total))
		if sinceFlush >= s.flushEvery {
			sinceFlush = 0
			if err := store.SaveRecords(context.WithoutCancel(ctx), s.store, results); err != nil {
				s.log.Errorf("scan checkpoint: %v", err)
				return
			}
			s.pub.Publish(events.Snapshot(completed, total))
		}
	})

	if err := store.SaveRecords(context.WithoutCancel(ctx), s.store, results); err != nil {
		return sum, err
	}
	s.pub.Publish(events.Status(fmt.Sprintf("scan completed: %d/%d", completed, total)))
	s.pub.Publish(events.Snapshot(completed, total))
	s.pub.Publish(events.Done(PhaseName))
	s.log.Infof("scan completed: %d/%d (ok=%d failed=%d)", completed, total, sum.OK, sum.Failed)
	return sum, nil
}

// fetchOne never panics: a panic while fetching or classifying url becomes a
// failure record like any other error.
func (s *Scanner) fetchOne(ctx context.Context, url string, timeout time.Duration) (rec models.LinkRecord) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("fetch %s: panic: %v", url, r)
			rec = s.failure(url, start, fmt.Errorf("panic: %v", r))
		}
	}()
	resp, err := s.fetcher.Fetch(ctx, url, timeout)
	if err != nil {
		s.log.Debugf("fetch %s: %v", url, err)
		return s.failure(url, start, err)
	}
	meta := s.parser.Extract(resp.Body, resp.ContentType)
	class := s.classifier.Classify(url, meta)
	s.metrics.ObserveFetch(true, time.Since(start))
	return models.LinkRecord{
		URL:           url,
		Title:         meta.Title,
		Description:   meta.Description,
		Tags:          class.Tags,
		Category:      class.Category,
		OK:            true,
		LastFetchedAt: s.now(),
	}
}

func (s *Scanner) failure(url string, start time.Time, err error) models.LinkRecord {
	s.metrics.ObserveFetch(false, time.Since(start))
	return models.LinkRecord{
		URL:           url,
		Tags:          []string{},
		OK:            false,
		Error:         err.Error(),
		LastFetchedAt: s.now(),
	}
}

// Normalize keeps http(s) URLs in order, lifting them to their domain root
// and dropping repeats when opts ask for it.
func Normalize(urls []string, opts models.ScanOptions) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !crawler.IsHTTPURL(u) {
			continue
		}
		if opts.LiftToDomain {
			u = crawler.LiftToDomain(u)
		}
		if u != "" {
			out = append(out, u)
		}
	}
	if opts.Dedupe {
		out = crawler.Dedupe(out)
	}
	return out
}

// Select applies the scan mode and limit to the normalized URLs. Resume takes
// missing URLs first, then failed ones, then stale ones.
func Select(urls []string, records models.RecordsMap, opts models.ScanOptions, now time.Time) []string {
	staleAfter := opts.StaleAfter()
	missing := func(u string) bool {
		_, ok := records[u]
		return !ok
	}
	failed := func(u string) bool {
		r, ok := records[u]
		return ok && !r.OK
	}
	stale := func(u string) bool {
		r, ok := records[u]
		return ok && now.Sub(r.LastFetchedAt) > staleAfter
	}

	var out []string
	switch opts.EffectiveMode() {
	case models.ModeMissing:
		out = filter(urls, missing)
	case models.ModeErrors:
		out = filter(urls, failed)
	case models.ModeStale:
		out = filter(urls, stale)
	case models.ModeResume:
		out = append(filter(urls, missing), filter(urls, failed)...)
		out = crawler.Dedupe(append(out, filter(urls, stale)...))
	default:
		out = append([]string(nil), urls...)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func filter(urls []string, keep func(string) bool) []string {
	var out []string
	for _, u := range urls {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}
