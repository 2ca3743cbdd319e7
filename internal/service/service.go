// Package service is the control surface shared by the HTTP server and the
// CLI. It owns the busy guard, the running scan and the persisted options.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/catalog"
	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/ioformats"
	"bookmark-cataloger/internal/metrics"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/report"
	"bookmark-cataloger/internal/scan"
	"bookmark-cataloger/internal/store"
	"bookmark-cataloger/pkg/logger"
)

// ErrInvalidOptions wraps every options validation failure.
var ErrInvalidOptions = errors.New("invalid options")

// Deps are the collaborators of a Service. Reports, Metrics, Logger and Now
// are optional.
type Deps struct {
	Tree      bookmarks.Tree
	Store     store.Store
	Fetcher   crawler.Fetcher
	Publisher events.Publisher
	Reports   report.Publisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Defaults  models.ScanOptions
	ReportURL string
	Now       func() time.Time
}

// Export describes one CSV export.
type Export struct {
	ReportURL string    `json:"reportUrl"`
	Location  string    `json:"location,omitempty"`
	Rows      int       `json:"rows"`
	At        time.Time `json:"at"`
}

type Service struct {
	base     context.Context
	store    store.Store
	pub      events.Publisher
	reports  report.Publisher
	metrics  *metrics.Metrics
	log      *logger.Logger
	defaults models.ScanOptions
	now      func() time.Time

	reportURL string
	scanner   *scan.Scanner
	catalog   *catalog.Cataloger

	session Session
	job     *scan.Job
	wg      sync.WaitGroup
}

// New builds a service. Background scans run under ctx, so cancelling it
// aborts in-flight fetches.
func New(ctx context.Context, d Deps) *Service {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ReportURL == "" {
		d.ReportURL = catalog.DefaultReportURL
	}
	return &Service{
		base:      ctx,
		store:     d.Store,
		pub:       d.Publisher,
		reports:   d.Reports,
		metrics:   d.Metrics,
		log:       d.Logger,
		defaults:  d.Defaults,
		now:       d.Now,
		reportURL: d.ReportURL,
		scanner: scan.New(d.Tree, d.Store, d.Fetcher, d.Publisher).
			WithMetrics(d.Metrics).
			WithLogger(d.Logger.With("component", "scan")).
			WithClock(d.Now),
		catalog: catalog.New(d.Tree, d.Store, d.Publisher).
			WithMetrics(d.Metrics).
			WithLogger(d.Logger.With("component", "catalog")).
			WithReportURL(d.ReportURL).
			WithClock(d.Now),
		job: scan.NewJob(),
	}
}

// Init writes the default options when none are stored yet.
func (s *Service) Init(ctx context.Context) error {
	_, found, err := store.LoadOptions(ctx, s.store, s.defaults)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	s.log.Infof("storing default options")
	return store.SaveOptions(ctx, s.store, s.defaults)
}

// Options returns the stored options, or the defaults.
func (s *Service) Options(ctx context.Context) (models.ScanOptions, error) {
	opts, _, err := store.LoadOptions(ctx, s.store, s.defaults)
	return opts, err
}

// SetOptions applies patch over the stored options and saves the result.
func (s *Service) SetOptions(ctx context.Context, patch models.ScanOptionsPatch) (models.ScanOptions, error) {
	cur, err := s.Options(ctx)
	if err != nil {
		return cur, err
	}
	next := patch.Apply(cur)
	if err := validate(next); err != nil {
		return cur, err
	}
	if err := store.SaveOptions(ctx, s.store, next); err != nil {
		return cur, err
	}
	return next, nil
}

func validate(o models.ScanOptions) error {
	switch {
	case !o.Mode.Valid():
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidOptions, o.Mode)
	case o.TimeoutMs <= 0:
		return fmt.Errorf("%w: timeoutMs must be positive", ErrInvalidOptions)
	case o.Limit < 0:
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidOptions)
	}
	return nil
}

func (s *Service) Records(ctx context.Context) (models.RecordsMap, error) {
	return store.LoadRecords(ctx, s.store)
}

func (s *Service) ClearRecords(ctx context.Context) error {
	return store.SaveRecords(ctx, s.store, models.RecordsMap{})
}

// StartScan admits a scan with the stored options overridden by patch and
// runs it in the background. It returns as soon as the scan is admitted.
func (s *Service) StartScan(ctx context.Context, patch models.ScanOptionsPatch) error {
	if err := s.begin(OpScan); err != nil {
		return err
	}
	cur, err := s.Options(ctx)
	if err != nil {
		s.session.End()
		return err
	}
	opts := patch.Apply(cur)
	if err := validate(opts); err != nil {
		s.session.End()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.session.End()
		err := guard(func() error {
			_, err := s.scanner.Run(s.base, s.job, opts)
			return err
		})
		if err != nil {
			s.pub.Publish(events.Status(fmt.Sprintf("scan error: %v", err)))
			s.fail(OpScan, err)
		}
	}()
	return nil
}

// RunScan is the blocking form of StartScan.
func (s *Service) RunScan(ctx context.Context, patch models.ScanOptionsPatch) (scan.Summary, error) {
	if err := s.begin(OpScan); err != nil {
		return scan.Summary{}, err
	}
	defer s.session.End()
	cur, err := s.Options(ctx)
	if err != nil {
		return scan.Summary{}, err
	}
	opts := patch.Apply(cur)
	if err := validate(opts); err != nil {
		return scan.Summary{}, err
	}
	var sum scan.Summary
	err = guard(func() error {
		var err error
		sum, err = s.scanner.Run(ctx, s.job, opts)
		return err
	})
	if err != nil {
		s.pub.Publish(events.Status(fmt.Sprintf("scan error: %v", err)))
		s.fail(OpScan, err)
	}
	return sum, err
}

// PauseScan holds back further fetches of a running scan. It reports whether
// anything changed.
func (s *Service) PauseScan() bool {
	if !s.job.Pause() {
		return false
	}
	s.pub.Publish(events.Status("scan paused"))
	return true
}

// ResumeScan releases a paused scan. It reports whether anything changed.
func (s *Service) ResumeScan() bool {
	if !s.job.Resume() {
		return false
	}
	s.pub.Publish(events.Status("scan resumed"))
	return true
}

// ScanState returns the running scan's state; ok is false when idle.
func (s *Service) ScanState() (models.ScanState, bool) {
	return s.job.State()
}

// Busy returns the operation currently holding the session.
func (s *Service) Busy() Op { return s.session.Active() }

// ExportCSV renders and stores the report, then hands it to the report
// publisher. A publishing failure is logged and otherwise ignored.
func (s *Service) ExportCSV(ctx context.Context) (Export, error) {
	records, err := store.LoadRecords(ctx, s.store)
	if err != nil {
		return Export{}, err
	}
	csv, err := ioformats.ComputeCSV(records)
	if err != nil {
		return Export{}, fmt.Errorf("render csv: %w", err)
	}
	at := s.now()
	if err := store.SaveCSV(ctx, s.store, csv, at); err != nil {
		return Export{}, err
	}
	out := Export{ReportURL: s.reportURL, Rows: len(records), At: at}
	if s.reports != nil {
		loc, err := s.reports.Publish(ctx, report.FileName(at), []byte(csv))
		if err != nil {
			s.log.Warnf("publish report: %v", err)
		} else {
			out.Location = loc
		}
	}
	return out, nil
}

// LastCSV returns the last exported CSV and when it was made.
func (s *Service) LastCSV(ctx context.Context) (string, time.Time, error) {
	return store.LoadCSV(ctx, s.store)
}

// Sort removes invalid records and organizes the rest with the strategy the
// stored options select.
func (s *Service) Sort(ctx context.Context) error {
	if err := s.begin(OpSort); err != nil {
		return err
	}
	defer s.session.End()
	opts, err := s.Options(ctx)
	if err == nil {
		err = guard(func() error { return s.catalog.Sort(ctx, opts) })
	}
	if err != nil {
		s.fail(OpSort, err)
	}
	return err
}

// Integrate files ok records into category folders under SORTED.
func (s *Service) Integrate(ctx context.Context) (int, error) {
	if err := s.begin(OpIntegrate); err != nil {
		return 0, err
	}
	defer s.session.End()
	var n int
	err := guard(func() error {
		var err error
		n, err = s.catalog.Integrate(ctx)
		return err
	})
	if err != nil {
		s.fail(OpIntegrate, err)
	}
	return n, err
}

// Reset clears the records and restores the default options.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.begin(OpReset); err != nil {
		return err
	}
	defer s.session.End()
	if err := store.SaveRecords(ctx, s.store, models.RecordsMap{}); err != nil {
		return err
	}
	return store.SaveOptions(ctx, s.store, s.defaults)
}

// Wait blocks until a background scan has finished.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) begin(op Op) error {
	if err := s.session.Begin(op); err != nil {
		s.metrics.BusyRejected()
		return err
	}
	return nil
}

// fail logs a composite operation that stopped with err and publishes it as
// an ERROR event.
func (s *Service) fail(op Op, err error) {
	msg := fmt.Sprintf("%s failed: %v", strings.ToLower(string(op)), err)
	s.log.Errorf("%s", msg)
	s.pub.Publish(events.Error(msg))
}

// guard turns a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
