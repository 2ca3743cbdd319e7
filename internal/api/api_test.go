package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bookmark-cataloger/internal/bookmarks"
	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/metrics"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/internal/service"
	"bookmark-cataloger/internal/store"
)

type gatedFetcher struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *gatedFetcher) Fetch(ctx context.Context, url string, _ time.Duration) (*crawler.Response, error) {
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	body := `<html><head><title>Python machine learning</title></head></html>`
	return &crawler.Response{Body: []byte(body), ContentType: "text/html", StatusCode: 200}, nil
}

type fixture struct {
	srv     *httptest.Server
	svc     *service.Service
	st      store.Store
	bus     *events.Bus
	handler *Handler
	fetcher *gatedFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tree := bookmarks.NewMemory([]*models.Node{
		{Title: "Bookmarks bar", Children: []*models.Node{
			{Title: "ml", URL: "https://ml.example/"},
		}},
	})
	st := store.NewMemory()
	bus := events.NewBus(16)
	reg := prometheus.NewRegistry()
	f := &gatedFetcher{release: make(chan struct{}), started: make(chan struct{})}
	svc := service.New(context.Background(), service.Deps{
		Tree:      tree,
		Store:     st,
		Fetcher:   f,
		Publisher: bus,
		Metrics:   metrics.New(reg),
		Defaults:  models.DefaultScanOptions(),
	})
	h := NewHandler(svc, bus, nil).WithGatherer(reg)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		select {
		case <-f.release:
		default:
			close(f.release)
		}
		svc.Wait()
		srv.Close()
	})
	return &fixture{srv: srv, svc: svc, st: st, bus: bus, handler: h, fetcher: f}
}

func (fx *fixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, fx.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)
	resp, err := http.Get(fx.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestOptionsEndpoints(t *testing.T) {
	fx := newFixture(t)

	code, env := fx.do(t, http.MethodGet, "/api/options", "")
	if code != http.StatusOK || !env.OK {
		t.Fatalf("get: %d %+v", code, env)
	}
	code, env = fx.do(t, http.MethodPut, "/api/options", `{"parallel":2,"flatMode":true}`)
	if code != http.StatusOK || !env.OK {
		t.Fatalf("put: %d %+v", code, env)
	}
	data := env.Data.(map[string]any)
	if data["parallel"].(float64) != 2 || data["flatMode"] != true || data["timeoutMs"].(float64) != 8000 {
		t.Fatalf("data = %v", data)
	}

	code, env = fx.do(t, http.MethodPut, "/api/options", `{"mode":"weekly"}`)
	if code != http.StatusBadRequest || env.OK || !strings.Contains(env.Error, "weekly") {
		t.Fatalf("bad mode: %d %+v", code, env)
	}
	code, env = fx.do(t, http.MethodPut, "/api/options", `{not json`)
	if code != http.StatusBadRequest || env.OK {
		t.Fatalf("bad json: %d %+v", code, env)
	}
}

func TestScanBusyConflict(t *testing.T) {
	fx := newFixture(t)

	code, env := fx.do(t, http.MethodPost, "/api/scan", "")
	if code != http.StatusOK || !env.OK {
		t.Fatalf("scan: %d %+v", code, env)
	}
	<-fx.fetcher.started

	code, env = fx.do(t, http.MethodPost, "/api/sort", "")
	if code != http.StatusConflict || env.OK || env.Error != "busy: SCAN" {
		t.Fatalf("sort during scan: %d %+v", code, env)
	}
	code, env = fx.do(t, http.MethodGet, "/api/scan/state", "")
	if state := env.Data.(map[string]any); code != http.StatusOK || state["inProgress"] != true {
		t.Fatalf("state: %d %+v", code, env)
	}
	_, env = fx.do(t, http.MethodPost, "/api/scan/pause", "")
	if env.Data.(map[string]any)["changed"] != true {
		t.Fatalf("pause: %+v", env)
	}
	_, env = fx.do(t, http.MethodPost, "/api/scan/resume", "")
	if env.Data.(map[string]any)["changed"] != true {
		t.Fatalf("resume: %+v", env)
	}

	close(fx.fetcher.release)
	fx.svc.Wait()

	code, env = fx.do(t, http.MethodGet, "/api/records", "")
	recs := env.Data.(map[string]any)
	if code != http.StatusOK || len(recs) != 1 {
		t.Fatalf("records: %d %+v", code, env)
	}
	code, env = fx.do(t, http.MethodPost, "/api/integrate", "")
	if code != http.StatusOK || env.Data.(map[string]any)["created"].(float64) != 1 {
		t.Fatalf("integrate: %d %+v", code, env)
	}

	resp, err := http.Get(fx.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sb strings.Builder
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		sb.WriteString(sc.Text() + "\n")
	}
	if !strings.Contains(sb.String(), "bookmarkcat_busy_rejections_total 1") {
		t.Fatalf("metrics missing busy rejection:\n%s", sb.String())
	}
}

func TestExportEndpoints(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	if err := store.SaveRecords(ctx, fx.st, models.RecordsMap{
		"https://a.example/": {URL: "https://a.example/", Title: "<b>A</b>", Tags: []string{"go"}, Category: "Dev", OK: true, LastFetchedAt: time.Now()},
		"https://b.example/": {URL: "https://b.example/", Tags: []string{}, Error: "HTTP 404", LastFetchedAt: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	code, env := fx.do(t, http.MethodPost, "/api/export", "")
	if code != http.StatusOK || env.Data.(map[string]any)["rows"].(float64) != 2 {
		t.Fatalf("export: %d %+v", code, env)
	}

	resp, err := http.Get(fx.srv.URL + "/export")
	if err != nil {
		t.Fatal(err)
	}
	page := readAll(t, resp)
	for _, want := range []string{`id="total-links">2<`, `id="error-links">1<`, "go (1)", "&lt;b&gt;A&lt;/b&gt;"} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}

	resp, err = http.Get(fx.srv.URL + "/export.csv")
	if err != nil {
		t.Fatal(err)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "bookmark_meta_") {
		t.Fatalf("content disposition = %q", cd)
	}
	if body := readAll(t, resp); !strings.HasPrefix(body, "url,title,description,tags,category,ok,error,lastFetchedAt\n") {
		t.Fatalf("csv = %q", body)
	}
}

func TestEventStream(t *testing.T) {
	fx := newFixture(t)
	resp, err := http.Get(fx.srv.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	fx.bus.Publish(events.Status("scan paused"))

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		if sc.Text() == "" {
			break
		}
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 || lines[0] != "event: STATUS" || lines[1] != `data: {"type":"STATUS","text":"scan paused"}` {
		t.Fatalf("lines = %q", lines)
	}
}

func TestEventStreamEndsOnClose(t *testing.T) {
	fx := newFixture(t)
	resp, err := http.Get(fx.srv.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	fx.handler.Close()
	fx.handler.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(resp.Body)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event stream still open after Close")
	}
}

func TestSummarize(t *testing.T) {
	a := Summarize(models.RecordsMap{
		"https://1/": {URL: "https://1/", OK: true, Tags: []string{"go", "web"}, Category: "Dev"},
		"https://2/": {URL: "https://2/", OK: true, Tags: []string{"go"}, Category: "Dev"},
		"https://3/": {URL: "https://3/", OK: true, Tags: []string{"news"}, Category: "News"},
		"https://4/": {URL: "https://4/", Tags: []string{}},
	})
	if a.Total != 4 || a.Valid != 3 || a.Errors != 1 || a.UniqueTags != 3 {
		t.Fatalf("counts = %+v", a)
	}
	if a.TopTags[0] != (TagCount{Name: "go", Count: 2, FontPx: 14}) || a.TopTags[1].Name != "web" {
		t.Fatalf("top tags = %+v", a.TopTags)
	}
	if len(a.Categories) != 2 || a.Categories[0].Name != "Dev" || a.Categories[1].Percent != 50 {
		t.Fatalf("categories = %+v", a.Categories)
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}
