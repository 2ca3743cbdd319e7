package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gathered returns the value of every sample of family name keyed by its
// label values joined with ",". Histograms report their sample count.
func gathered(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := map[string]float64{}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			key := ""
			for i, l := range m.GetLabel() {
				if i > 0 {
					key += ","
				}
				key += l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFetch(true, 100*time.Millisecond)
	m.ObserveFetch(true, 200*time.Millisecond)
	m.ObserveFetch(false, time.Second)
	m.LinksCreated("flat", 3)
	m.LinksCreated("flat", 0)
	m.BusyRejected()
	m.ScanRunning(true)

	fetches := gathered(t, reg, "bookmarkcat_fetch_total")
	if fetches["ok"] != 2 || fetches["error"] != 1 {
		t.Fatalf("fetches = %v", fetches)
	}
	if d := gathered(t, reg, "bookmarkcat_fetch_duration_seconds"); d[""] != 3 {
		t.Fatalf("duration samples = %v", d)
	}
	if l := gathered(t, reg, "bookmarkcat_catalog_links_created_total"); l["flat"] != 3 {
		t.Fatalf("links = %v", l)
	}
	if b := gathered(t, reg, "bookmarkcat_busy_rejections_total"); b[""] != 1 {
		t.Fatalf("busy = %v", b)
	}
	if g := gathered(t, reg, "bookmarkcat_scan_in_progress"); g[""] != 1 {
		t.Fatalf("scan gauge = %v", g)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFetch(true, time.Second)
	m.LinksCreated("flat", 1)
	m.BusyRejected()
	m.ScanRunning(false)
}
