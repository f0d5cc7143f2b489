package scantask

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/pkg/models"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

// startScanRequest is the JSON body for POST /scans.
type startScanRequest struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

// progressRequest is the JSON body for PATCH /scans/{id}/progress.
type progressRequest struct {
	Percent int `json:"percent"`
}

// cancelRequest is the JSON body for POST /scans/{id}/cancel.
type cancelRequest struct {
	Confirmed bool `json:"confirmed"`
}

// activeScanResponse wraps the optional active scan so "no scan running" is
// an explicit shape rather than an empty body.
type activeScanResponse struct {
	Active    *models.ActiveScan `json:"active"`
	CheckedAt *time.Time         `json:"checked_at,omitempty"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/scans", Handler: m.handleListScans},
		{Method: "POST", Path: "/scans", Handler: m.handleStartScan},
		{Method: "GET", Path: "/scans/active", Handler: m.handleActiveScan},
		{Method: "GET", Path: "/scans/{id}", Handler: m.handleGetScan},
		{Method: "PATCH", Path: "/scans/{id}/progress", Handler: m.handleProgress},
		{Method: "POST", Path: "/scans/{id}/complete", Handler: m.handleComplete},
		{Method: "POST", Path: "/scans/{id}/fail", Handler: m.handleFail},
		{Method: "POST", Path: "/scans/{id}/cancel", Handler: m.handleCancel},
		{Method: "GET", Path: "/workflow", Handler: m.handleWorkflow},
	}
}

// handleListScans returns recent scan tasks.
//
//	@Summary		List scans
//	@Description	Returns recent scan tasks, newest first.
//	@Tags			scantask
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit query int false "Maximum tasks" default(50)
//	@Success		200 {array} models.ScanTask
//	@Failure		500 {object} map[string]any
//	@Router			/scantask/scans [get]
func (m *Module) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	tasks, err := m.service.List(r.Context(), limit)
	if err != nil {
		m.logger.Warn("failed to list scans", zap.Error(err))
		taskWriteError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	taskWriteJSON(w, http.StatusOK, tasks)
}

// handleStartScan starts a new scan through the guard.
//
//	@Summary		Start scan
//	@Description	Starts a discovery scan. Rejected with 409 while another scan is running.
//	@Tags			scantask
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body body startScanRequest true "Scan definition"
//	@Success		201 {object} models.ScanTask
//	@Failure		400 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/scantask/scans [post]
func (m *Module) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		taskWriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := m.guard.StartScan(r.Context(), req.Name, req.Target)
	if errors.Is(err, ErrScanAlreadyRunning) {
		taskWriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		taskWriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	taskWriteJSON(w, http.StatusCreated, task)
}

// handleActiveScan returns the guard's view of the running scan.
//
//	@Summary		Active scan
//	@Description	Returns the currently running scan, or null when idle.
//	@Tags			scantask
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} activeScanResponse
//	@Router			/scantask/scans/active [get]
func (m *Module) handleActiveScan(w http.ResponseWriter, r *http.Request) {
	// Refresh on read so the response is current, not poll-interval stale.
	if err := m.guard.CheckActive(r.Context()); err != nil {
		m.logger.Warn("active scan refresh failed", zap.Error(err))
	}
	resp := activeScanResponse{Active: m.guard.Active()}
	if at := m.guard.CheckedAt(); !at.IsZero() {
		resp.CheckedAt = &at
	}
	taskWriteJSON(w, http.StatusOK, resp)
}

// handleGetScan returns one scan task.
//
//	@Summary		Get scan
//	@Tags			scantask
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id path string true "Scan task ID"
//	@Success		200 {object} models.ScanTask
//	@Failure		404 {object} map[string]any
//	@Router			/scantask/scans/{id} [get]
func (m *Module) handleGetScan(w http.ResponseWriter, r *http.Request) {
	task, err := m.service.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		taskWriteError(w, http.StatusNotFound, "scan task not found")
		return
	}
	if err != nil {
		m.logger.Warn("failed to get scan", zap.Error(err))
		taskWriteError(w, http.StatusInternalServerError, "failed to get scan")
		return
	}
	taskWriteJSON(w, http.StatusOK, task)
}

// handleProgress records progress for the running scan.
//
//	@Summary		Update progress
//	@Tags			scantask
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id path string true "Scan task ID"
//	@Param			body body progressRequest true "Progress"
//	@Success		204
//	@Failure		404 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/scantask/scans/{id}/progress [patch]
func (m *Module) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		taskWriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m.finishWrite(w, m.service.UpdateProgress(r.Context(), r.PathValue("id"), req.Percent))
}

// handleComplete finishes the running scan successfully.
//
//	@Summary		Complete scan
//	@Tags			scantask
//	@Security		BearerAuth
//	@Param			id path string true "Scan task ID"
//	@Success		204
//	@Failure		404 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/scantask/scans/{id}/complete [post]
func (m *Module) handleComplete(w http.ResponseWriter, r *http.Request) {
	err := m.service.Complete(r.Context(), r.PathValue("id"))
	if err == nil {
		m.guard.Invalidate()
	}
	m.finishWrite(w, err)
}

// handleFail finishes the running scan as failed.
//
//	@Summary		Fail scan
//	@Tags			scantask
//	@Security		BearerAuth
//	@Param			id path string true "Scan task ID"
//	@Success		204
//	@Failure		404 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/scantask/scans/{id}/fail [post]
func (m *Module) handleFail(w http.ResponseWriter, r *http.Request) {
	err := m.service.Fail(r.Context(), r.PathValue("id"))
	if err == nil {
		m.guard.Invalidate()
	}
	m.finishWrite(w, err)
}

// handleCancel cancels the running scan. The body must carry confirmed:true.
//
//	@Summary		Cancel scan
//	@Description	Cancels the running scan. Requires an explicit confirmation flag.
//	@Tags			scantask
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id path string true "Scan task ID"
//	@Param			body body cancelRequest true "Confirmation"
//	@Success		204
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/scantask/scans/{id}/cancel [post]
func (m *Module) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		taskWriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := m.guard.CancelScan(r.Context(), r.PathValue("id"), req.Confirmed)
	if errors.Is(err, ErrConfirmationRequired) {
		taskWriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.finishWrite(w, err)
}

// handleWorkflow returns the derived onboarding progress.
//
//	@Summary		Workflow progress
//	@Description	Returns which onboarding steps have at least one resource.
//	@Tags			scantask
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} models.WorkflowProgress
//	@Failure		502 {object} map[string]any
//	@Router			/scantask/workflow [get]
func (m *Module) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	progress, err := m.workflow.Progress(r.Context())
	if err != nil {
		m.logger.Warn("workflow progress failed", zap.Error(err))
		taskWriteError(w, http.StatusBadGateway, "failed to derive workflow progress")
		return
	}
	taskWriteJSON(w, http.StatusOK, progress)
}

// finishWrite maps the shared error surface of task mutations.
func (m *Module) finishWrite(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		taskWriteError(w, http.StatusNotFound, "scan task not found")
	case errors.Is(err, ErrNotRunning):
		taskWriteError(w, http.StatusConflict, "scan task is not running")
	default:
		m.logger.Warn("scan task update failed", zap.Error(err))
		taskWriteError(w, http.StatusInternalServerError, "scan task update failed")
	}
}

// -- helpers --

func taskWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func taskWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://scanfleet.io/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
