package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	// Observers on a nil registry are no-ops.
	m.IncModeTransition("declined", "live")
	m.ObserveTileInit(true, time.Second)
	m.IncSurfaceClick("coordinate")
	m.SetMarkers("measurement", 5)
	m.IncFeedRun(false)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", got)
	}
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/readyz", http.StatusOK, 12*time.Millisecond)
	m.IncModeTransition("awaiting_credential", "live")
	m.ObserveTileInit(false, 300*time.Millisecond)
	m.IncSurfaceClick("marker")
	m.SetMarkers("measurement", 5)
	m.IncFeedRun(true)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	for _, want := range []string{
		"mapsurface_http_requests_total{method=\"GET\",path=\"/readyz\",status=\"200\"} 1",
		"mapsurface_mode_transitions_total{from=\"awaiting_credential\",to=\"live\"} 1",
		"mapsurface_tile_init_duration_seconds_count{outcome=\"failed\"} 1",
		"mapsurface_surface_clicks_total{result=\"marker\"} 1",
		"mapsurface_markers{category=\"measurement\"} 5",
		"mapsurface_feed_runs_total{outcome=\"ok\"} 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition; body=%s", want, body)
		}
	}
}
