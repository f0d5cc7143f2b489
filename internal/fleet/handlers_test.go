package fleet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HerbHall/scanfleet/internal/testutil"
	"github.com/HerbHall/scanfleet/pkg/models"
)

// newTestHandler assembles a fleet module on fakes and mounts its routes
// the way the server does.
func newTestHandler(t *testing.T) (*Module, *fakeRegistry, http.Handler) {
	t.Helper()

	registry := newFakeRegistry(
		testutil.NewDefaultScanner(),
		testutil.NewScanner(testutil.WithID("satellite_a")),
	)
	probes := newCountingProbes()
	logger := testutil.Logger()

	m := &Module{
		logger:   logger,
		snapshot: NewSnapshot(),
		network:  probes,
	}
	m.diagnostics = NewDiagnostics(probes, probes, NewLogProbe(), logger, nil)
	m.poller = NewPoller(registry, probes, m.snapshot, nil, nil, logger, time.Hour, nil)
	t.Cleanup(m.poller.Stop)

	mux := http.NewServeMux()
	for _, route := range m.Routes() {
		mux.Handle(route.Method+" /api/v1/fleet"+route.Path, route.Handler)
	}
	return m, registry, mux
}

func doRequest(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleListScanners_EmptyBeforeFirstPoll(t *testing.T) {
	_, _, h := newTestHandler(t)

	w := doRequest(h, http.MethodGet, "/api/v1/fleet/scanners")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp fleetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Scanners) != 0 {
		t.Errorf("scanners = %v, want empty", resp.Scanners)
	}
	if resp.RefreshedAt != nil {
		t.Error("refreshed_at should be absent before the first poll")
	}
}

func TestHandleListScanners_AfterPoll(t *testing.T) {
	m, _, h := newTestHandler(t)
	if err := m.poller.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	w := doRequest(h, http.MethodGet, "/api/v1/fleet/scanners")
	var resp fleetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Scanners) != 2 {
		t.Errorf("scanners = %d, want 2", len(resp.Scanners))
	}
	if resp.RefreshedAt == nil {
		t.Error("refreshed_at missing after a successful poll")
	}
}

func TestHandleGetHealth_UnknownScanner(t *testing.T) {
	_, _, h := newTestHandler(t)

	w := doRequest(h, http.MethodGet, "/api/v1/fleet/scanners/nope/health")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q, want problem+json", ct)
	}
}

func TestHandleGetHealth_AfterPoll(t *testing.T) {
	m, _, h := newTestHandler(t)
	if err := m.poller.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	w := doRequest(h, http.MethodGet, "/api/v1/fleet/scanners/satellite_a/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var rec models.HealthRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Status != models.HealthStatusHealthy {
		t.Errorf("status = %q, want healthy", rec.Status)
	}
}

func TestHandleRefreshNetworks_DefaultScannerForbidden(t *testing.T) {
	m, _, h := newTestHandler(t)
	if err := m.poller.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	// Real network probe so the denial rule is exercised; the fake always
	// succeeds.
	m.network = NewNetworkProbe(newAPIClient(nil, nil), "http://registry.invalid")

	w := doRequest(h, http.MethodPost, "/api/v1/fleet/scanners/Default%20Scanner/refresh-networks")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestHandleDiagnosticsLifecycle(t *testing.T) {
	m, _, h := newTestHandler(t)
	if err := m.poller.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	w := doRequest(h, http.MethodPost, "/api/v1/fleet/scanners/satellite_a/diagnostics")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", w.Code)
	}

	// The run is async; poll until completed.
	deadline := time.After(2 * time.Second)
	for {
		w = doRequest(h, http.MethodGet, "/api/v1/fleet/scanners/satellite_a/diagnostics")
		if w.Code != http.StatusOK {
			t.Fatalf("get status = %d, want 200", w.Code)
		}
		var report models.DiagnosticsReport
		if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if report.Status == models.DiagnosticsCompleted {
			if report.Health == nil || report.NetworkInfo == nil || report.Logs == nil {
				t.Fatalf("completed report missing sections: %+v", report)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("diagnostics never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if w := doRequest(h, http.MethodDelete, "/api/v1/fleet/scanners/satellite_a/diagnostics"); w.Code != http.StatusNoContent {
		t.Fatalf("discard status = %d, want 204", w.Code)
	}
	if w := doRequest(h, http.MethodGet, "/api/v1/fleet/scanners/satellite_a/diagnostics"); w.Code != http.StatusNotFound {
		t.Errorf("get after discard = %d, want 404", w.Code)
	}
}

func TestHandlePollerEndpoints(t *testing.T) {
	_, registry, h := newTestHandler(t)

	w := doRequest(h, http.MethodGet, "/api/v1/fleet/poller")
	var status pollerStatus
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Running {
		t.Error("poller should not run before start")
	}

	if w := doRequest(h, http.MethodPost, "/api/v1/fleet/poller/start"); w.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", w.Code)
	}
	if w := doRequest(h, http.MethodPost, "/api/v1/fleet/poller/stop"); w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", w.Code)
	}

	if w := doRequest(h, http.MethodPost, "/api/v1/fleet/poll"); w.Code != http.StatusOK {
		t.Fatalf("manual poll status = %d, want 200", w.Code)
	}
	if registry.calls.Load() == 0 {
		t.Error("manual poll never reached the registry")
	}

	registry.fail.Store(true)
	if w := doRequest(h, http.MethodPost, "/api/v1/fleet/poll"); w.Code != http.StatusBadGateway {
		t.Errorf("failed poll status = %d, want 502", w.Code)
	}
}
