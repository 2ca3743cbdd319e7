// Package api exposes the service over HTTP. Every JSON response is
// {"ok":true,"data":...} or {"ok":false,"error":"..."}.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/service"
	"bookmark-cataloger/pkg/logger"
)

type Handler struct {
	svc      *service.Service
	bus      *events.Bus
	log      *logger.Logger
	gatherer prometheus.Gatherer

	done      chan struct{}
	closeOnce sync.Once
}

func NewHandler(svc *service.Service, bus *events.Bus, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.Discard()
	}
	return &Handler{svc: svc, bus: bus, log: l, done: make(chan struct{})}
}

// Close ends every open event stream. Register it with
// http.Server.RegisterOnShutdown so streams do not hold up shutdown.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// WithGatherer serves g on /metrics.
func (h *Handler) WithGatherer(g prometheus.Gatherer) *Handler {
	h.gatherer = g
	return h
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequest(h.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/export", h.exportPage)
	r.Get("/export.csv", h.exportCSV)

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", h.getOptions)
		r.Put("/options", h.putOptions)
		r.Get("/records", h.getRecords)
		r.Delete("/records", h.clearRecords)
		r.Post("/scan", h.startScan)
		r.Post("/scan/pause", h.pauseScan)
		r.Post("/scan/resume", h.resumeScan)
		r.Get("/scan/state", h.scanState)
		r.Post("/export", h.export)
		r.Post("/sort", h.sort)
		r.Post("/integrate", h.integrate)
		r.Post("/reset", h.reset)
		r.Get("/events", h.events)
	})
	return r
}

type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Data: data})
}

func fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, service.ErrInvalidOptions):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, envelope{Error: err.Error()})
}

func logRequest(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			l.Infof("%s %s %s [%s]", r.Method, r.URL.Path, time.Since(start), middleware.GetReqID(r.Context()))
		})
	}
}

// decodePatch reads an optional options patch. An empty body is no patch.
func decodePatch(r *http.Request) (models.ScanOptionsPatch, error) {
	var p models.ScanOptionsPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("%w: %v", service.ErrInvalidOptions, err)
	}
	return p, nil
}

func (h *Handler) getOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.Options(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, opts)
}

func (h *Handler) putOptions(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		fail(w, err)
		return
	}
	opts, err := h.svc.SetOptions(r.Context(), patch)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, opts)
}

func (h *Handler) getRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Records(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, recs)
}

func (h *Handler) clearRecords(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearRecords(r.Context()); err != nil {
		fail(w, err)
		return
	}
	ok(w, nil)
}

func (h *Handler) startScan(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.svc.StartScan(r.Context(), patch); err != nil {
		fail(w, err)
		return
	}
	ok(w, nil)
}

func (h *Handler) pauseScan(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]bool{"changed": h.svc.PauseScan()})
}

func (h *Handler) resumeScan(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]bool{"changed": h.svc.ResumeScan()})
}

func (h *Handler) scanState(w http.ResponseWriter, r *http.Request) {
	state, running := h.svc.ScanState()
	if !running {
		ok(w, models.ScanState{RemainingQueue: []string{}})
		return
	}
	ok(w, state)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.ExportCSV(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, exp)
}

func (h *Handler) sort(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sort(r.Context()); err != nil {
		fail(w, err)
		return
	}
	ok(w, nil)
}

func (h *Handler) integrate(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Integrate(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, map[string]int{"created": n})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context()); err != nil {
		fail(w, err)
		return
	}
	ok(w, nil)
}

// events streams bus events as server-sent events until the client leaves.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		fail(w, errors.New("event stream not configured"))
		return
	}
	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case e, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
