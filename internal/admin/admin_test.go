package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/pyserve/internal/testutil/testlog"
)

func TestHealthReportsIdentity(t *testing.T) {
	testlog.Start(t)

	a := New("pyserve.test", "server", "", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["service"] != "pyserve.test" || body["kind"] != "server" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyFollowsReadyFunc(t *testing.T) {
	testlog.Start(t)

	ready := false
	a := New("pyhost.test", "host", "", nil)
	a.Ready = func() bool { return ready }

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}

	ready = true
	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	testlog.Start(t)

	a := New("pyserve.metrics", "server", "", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
