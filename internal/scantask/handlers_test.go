package scantask

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbHall/scanfleet/internal/testutil"
	"github.com/HerbHall/scanfleet/pkg/models"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	svc, _ := newTestService(t)
	m := &Module{
		logger:   testutil.Logger(),
		service:  svc,
		guard:    NewGuard(svc, testutil.Logger(), nil),
		workflow: NewWorkflow(svc, fakeSummary{}),
	}

	mux := http.NewServeMux()
	for _, route := range m.Routes() {
		mux.Handle(route.Method+" /api/v1/scantask"+route.Path, route.Handler)
	}
	return mux
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleStartScan_ConflictIs409(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"sweep","target":"10.0.0.0/16"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("first start status = %d, want 201: %s", w.Code, w.Body)
	}
	var task models.ScanTask
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.Status != models.ScanTaskRunning {
		t.Errorf("status = %q, want running", task.Status)
	}

	w = do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"dup","target":"10.1.0.0/16"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q, want problem+json", ct)
	}
}

func TestHandleStartScan_BadBody(t *testing.T) {
	h := newTestHandler(t)

	if w := do(h, http.MethodPost, "/api/v1/scantask/scans", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"","target":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", w.Code)
	}
}

func TestHandleActiveScan(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, http.MethodGet, "/api/v1/scantask/scans/active", "")
	var resp activeScanResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Active != nil {
		t.Errorf("active = %+v, want null when idle", resp.Active)
	}

	do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"sweep","target":"10.0.0.0/16"}`)

	w = do(h, http.MethodGet, "/api/v1/scantask/scans/active", "")
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Active == nil || resp.Active.Name != "sweep" {
		t.Errorf("active = %+v, want the running sweep", resp.Active)
	}
}

func TestHandleCancel_ConfirmationGate(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"sweep","target":"10.0.0.0/16"}`)
	var task models.ScanTask
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := do(h, http.MethodPost, "/api/v1/scantask/scans/"+task.ID+"/cancel", `{"confirmed":false}`); w.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed cancel status = %d, want 400", w.Code)
	}
	if w := do(h, http.MethodPost, "/api/v1/scantask/scans/"+task.ID+"/cancel", `{"confirmed":true}`); w.Code != http.StatusNoContent {
		t.Errorf("confirmed cancel status = %d, want 204", w.Code)
	}

	// The slot is free again.
	if w := do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"next","target":"10.2.0.0/16"}`); w.Code != http.StatusCreated {
		t.Errorf("start after cancel status = %d, want 201", w.Code)
	}
}

func TestHandleProgressAndComplete(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, http.MethodPost, "/api/v1/scantask/scans", `{"name":"sweep","target":"10.0.0.0/16"}`)
	var task models.ScanTask
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := do(h, http.MethodPatch, "/api/v1/scantask/scans/"+task.ID+"/progress", `{"percent":40}`); w.Code != http.StatusNoContent {
		t.Fatalf("progress status = %d, want 204", w.Code)
	}

	w = do(h, http.MethodGet, "/api/v1/scantask/scans/"+task.ID, "")
	var got models.ScanTask
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ProgressPercent != 40 {
		t.Errorf("progress = %d, want 40", got.ProgressPercent)
	}

	if w := do(h, http.MethodPost, "/api/v1/scantask/scans/"+task.ID+"/complete", ""); w.Code != http.StatusNoContent {
		t.Fatalf("complete status = %d, want 204", w.Code)
	}
	if w := do(h, http.MethodPost, "/api/v1/scantask/scans/"+task.ID+"/complete", ""); w.Code != http.StatusConflict {
		t.Errorf("double complete status = %d, want 409", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/scantask/scans/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing task status = %d, want 404", w.Code)
	}
}

func TestHandleWorkflow(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, http.MethodGet, "/api/v1/scantask/workflow", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var progress models.WorkflowProgress
	if err := json.NewDecoder(w.Body).Decode(&progress); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if progress.Discovery {
		t.Error("discovery should be false with no completed scans")
	}
}
