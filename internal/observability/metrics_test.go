package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveUpstream("list", "200", "ok", 15*time.Millisecond)
	m.ObserveUpstream("list", "200", "ok", 5*time.Millisecond)
	m.ObserveUpstream("search", "502", "server", time.Millisecond)
	m.StaleDiscarded("loans", "list")
	m.ExportFinished("loans", ExportOK)
	m.ExportFinished("loans", ExportEmpty)
	m.CacheLookup("hit")
	m.CacheLookup("miss")
	m.CacheLookup("miss")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"upstream list 200", testutil.ToFloat64(m.upstreamRequests.WithLabelValues("list", "200", "ok")), 2},
		{"upstream search 502", testutil.ToFloat64(m.upstreamRequests.WithLabelValues("search", "502", "server")), 1},
		{"stale", testutil.ToFloat64(m.staleResults.WithLabelValues("loans", "list")), 1},
		{"export ok", testutil.ToFloat64(m.exports.WithLabelValues("loans", ExportOK)), 1},
		{"export empty", testutil.ToFloat64(m.exports.WithLabelValues("loans", ExportEmpty)), 1},
		{"cache hit", testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")), 1},
		{"cache miss", testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v; want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.StaleDiscarded("loans", "list")
	if got := testutil.ToFloat64(b.staleResults.WithLabelValues("loans", "list")); got != 0 {
		t.Fatalf("second registry saw %v; want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/loans", http.StatusOK, 3*time.Millisecond)
	m.ObserveHTTP(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`lendpanel_http_requests_total{method="GET",route="/loans",status="200"} 1`,
		`route="unmatched"`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
