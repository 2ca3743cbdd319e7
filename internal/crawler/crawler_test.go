
package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchHTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html><title>x</title></html>"))
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	resp, err := client.Fetch(context.Background(), ts.URL, time.Second)
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if resp.FinalURL == "" || resp.ContentType == "" || resp.Elapsed == 0 {
		t.Fatal("unexpected empty values")
	}
	if string(resp.Body) != "<html><title>x</title></html>" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<title>new</title>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	resp, err := client.Fetch(context.Background(), ts.URL+"/old", time.Second)
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if !strings.HasSuffix(resp.FinalURL, "/new") {
		t.Fatalf("want final url /new, got %s", resp.FinalURL)
	}
}

func TestFetchStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	_, err := client.Fetch(context.Background(), ts.URL, time.Second)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("want StatusError 404, got %v", err)
	}
	if err.Error() != "HTTP 404" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	start := time.Now()
	_, err := client.Fetch(context.Background(), ts.URL, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not enforced")
	}
}

func TestFetchGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("<title>zipped</title>"))
	_ = gz.Close()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(buf.Bytes())
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	resp, err := client.Fetch(context.Background(), ts.URL, time.Second)
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if string(resp.Body) != "<title>zipped</title>" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	if _, err := client.Fetch(context.Background(), "not-a-url", time.Second); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestLiftToDomain(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://example.com/a?b=1", "https://example.com/"},
		{"https://Example.COM/a", "https://example.com/"},
		{"HTTP://WWW.Example.org:8080/x", "http://www.example.org/"},
		{"not a url", "not a url"},
	}
	for _, c := range cases {
		if got := LiftToDomain(c.in); got != c.want {
			t.Errorf("LiftToDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	got := Dedupe([]string{LiftToDomain("https://Example.COM/a"), LiftToDomain("https://example.com/b")})
	if len(got) != 1 {
		t.Fatalf("mixed-case hosts not collapsed: %v", got)
	}
}
