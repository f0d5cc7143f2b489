package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/pkg/models"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

// fleetResponse is the payload for GET /scanners.
type fleetResponse struct {
	Scanners    []models.Scanner `json:"scanners"`
	RefreshedAt *time.Time       `json:"refreshed_at,omitempty"`
}

// scannerDetail is the payload for GET /scanners/{key}: the registry record
// plus whatever probe results exist for it.
type scannerDetail struct {
	Scanner models.Scanner            `json:"scanner"`
	Health  *models.HealthRecord      `json:"health,omitempty"`
	Network *models.NetworkInfoRecord `json:"network,omitempty"`
}

// pollerStatus is the payload for the poller endpoints.
type pollerStatus struct {
	Running bool `json:"running"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/scanners", Handler: m.handleListScanners},
		{Method: "GET", Path: "/scanners/{key}", Handler: m.handleGetScanner},
		{Method: "GET", Path: "/scanners/{key}/health", Handler: m.handleGetHealth},
		{Method: "GET", Path: "/scanners/{key}/network", Handler: m.handleGetNetwork},
		{Method: "POST", Path: "/scanners/{key}/refresh-networks", Handler: m.handleRefreshNetworks},
		{Method: "POST", Path: "/scanners/{key}/diagnostics", Handler: m.handleStartDiagnostics},
		{Method: "GET", Path: "/scanners/{key}/diagnostics", Handler: m.handleGetDiagnostics},
		{Method: "DELETE", Path: "/scanners/{key}/diagnostics", Handler: m.handleDiscardDiagnostics},
		{Method: "POST", Path: "/poll", Handler: m.handlePollNow},
		{Method: "GET", Path: "/poller", Handler: m.handlePollerStatus},
		{Method: "POST", Path: "/poller/start", Handler: m.handlePollerStart},
		{Method: "POST", Path: "/poller/stop", Handler: m.handlePollerStop},
	}
}

// handleListScanners returns the fleet from the last successful poll.
//
//	@Summary		List scanners
//	@Description	Returns the scanner fleet from the last successful registry poll.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} fleetResponse
//	@Router			/fleet/scanners [get]
func (m *Module) handleListScanners(w http.ResponseWriter, r *http.Request) {
	scanners := m.snapshot.Scanners()
	if scanners == nil {
		scanners = []models.Scanner{}
	}
	resp := fleetResponse{Scanners: scanners}
	if at := m.snapshot.RefreshedAt(); !at.IsZero() {
		resp.RefreshedAt = &at
	}
	fleetWriteJSON(w, http.StatusOK, resp)
}

// handleGetScanner returns one scanner with its latest probe results.
//
//	@Summary		Get scanner
//	@Description	Returns a scanner and its latest health and network records.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key (id, or name for the default scanner)"
//	@Success		200 {object} scannerDetail
//	@Failure		404 {object} map[string]any
//	@Router			/fleet/scanners/{key} [get]
func (m *Module) handleGetScanner(w http.ResponseWriter, r *http.Request) {
	scanner, ok := m.lookupScanner(w, r)
	if !ok {
		return
	}
	detail := scannerDetail{Scanner: scanner}
	if h, ok := m.snapshot.Health(scanner.EffectiveKey()); ok {
		detail.Health = &h
	}
	if n, ok := m.snapshot.Network(scanner.EffectiveKey()); ok {
		detail.Network = &n
	}
	fleetWriteJSON(w, http.StatusOK, detail)
}

// handleGetHealth returns the latest health record for one scanner.
//
//	@Summary		Scanner health
//	@Description	Returns the latest health record for a scanner.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key"
//	@Success		200 {object} models.HealthRecord
//	@Failure		404 {object} map[string]any
//	@Router			/fleet/scanners/{key}/health [get]
func (m *Module) handleGetHealth(w http.ResponseWriter, r *http.Request) {
	scanner, ok := m.lookupScanner(w, r)
	if !ok {
		return
	}
	rec, ok := m.snapshot.Health(scanner.EffectiveKey())
	if !ok {
		fleetWriteError(w, http.StatusNotFound, "no health record yet for this scanner")
		return
	}
	fleetWriteJSON(w, http.StatusOK, rec)
}

// handleGetNetwork returns the latest network record for one scanner.
//
//	@Summary		Scanner network info
//	@Description	Returns the latest detected subnets and interfaces for a scanner.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key"
//	@Success		200 {object} models.NetworkInfoRecord
//	@Failure		404 {object} map[string]any
//	@Router			/fleet/scanners/{key}/network [get]
func (m *Module) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	scanner, ok := m.lookupScanner(w, r)
	if !ok {
		return
	}
	rec, ok := m.snapshot.Network(scanner.EffectiveKey())
	if !ok {
		fleetWriteError(w, http.StatusNotFound, "no network record yet for this scanner")
		return
	}
	fleetWriteJSON(w, http.StatusOK, rec)
}

// handleRefreshNetworks asks the scanner agent to re-detect its subnets.
//
//	@Summary		Refresh networks
//	@Description	Triggers subnet re-detection on the scanner agent. Not available for the default scanner.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key"
//	@Success		202 {object} map[string]string
//	@Failure		403 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Failure		502 {object} map[string]any
//	@Router			/fleet/scanners/{key}/refresh-networks [post]
func (m *Module) handleRefreshNetworks(w http.ResponseWriter, r *http.Request) {
	scanner, ok := m.lookupScanner(w, r)
	if !ok {
		return
	}
	if err := m.network.RefreshNetworks(r.Context(), scanner); err != nil {
		if errors.Is(err, ErrActionDenied) {
			fleetWriteError(w, http.StatusForbidden, err.Error())
			return
		}
		m.logger.Warn("refresh networks failed",
			zap.String("scanner", scanner.EffectiveKey()), zap.Error(err))
		fleetWriteError(w, http.StatusBadGateway, "scanner did not accept the refresh request")
		return
	}
	fleetWriteJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

// handleStartDiagnostics begins a diagnostics run for one scanner.
//
//	@Summary		Start diagnostics
//	@Description	Starts the health/network/logs diagnostics pipeline for a scanner. A rerun replaces the previous report.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key"
//	@Success		202 {object} models.DiagnosticsReport
//	@Failure		404 {object} map[string]any
//	@Router			/fleet/scanners/{key}/diagnostics [post]
func (m *Module) handleStartDiagnostics(w http.ResponseWriter, r *http.Request) {
	scanner, ok := m.lookupScanner(w, r)
	if !ok {
		return
	}
	report := m.diagnostics.Start(r.Context(), scanner)
	fleetWriteJSON(w, http.StatusAccepted, report)
}

// handleGetDiagnostics returns the current diagnostics report.
//
//	@Summary		Get diagnostics
//	@Description	Returns the current diagnostics report for a scanner; partial while running.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key"
//	@Success		200 {object} models.DiagnosticsReport
//	@Failure		404 {object} map[string]any
//	@Router			/fleet/scanners/{key}/diagnostics [get]
func (m *Module) handleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	report, ok := m.diagnostics.Get(key)
	if !ok {
		fleetWriteError(w, http.StatusNotFound, "no diagnostics report for this scanner")
		return
	}
	fleetWriteJSON(w, http.StatusOK, report)
}

// handleDiscardDiagnostics drops the diagnostics report for one scanner.
//
//	@Summary		Discard diagnostics
//	@Description	Discards the diagnostics report for a scanner.
//	@Tags			fleet
//	@Security		BearerAuth
//	@Param			key path string true "Scanner key"
//	@Success		204
//	@Failure		404 {object} map[string]any
//	@Router			/fleet/scanners/{key}/diagnostics [delete]
func (m *Module) handleDiscardDiagnostics(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !m.diagnostics.Discard(key) {
		fleetWriteError(w, http.StatusNotFound, "no diagnostics report for this scanner")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePollNow runs one poll cycle synchronously.
//
//	@Summary		Poll now
//	@Description	Runs one registry poll and probe cycle immediately.
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} fleetResponse
//	@Failure		502 {object} map[string]any
//	@Router			/fleet/poll [post]
func (m *Module) handlePollNow(w http.ResponseWriter, r *http.Request) {
	if err := m.poller.Tick(r.Context()); err != nil {
		m.logger.Warn("manual poll failed", zap.Error(err))
		fleetWriteError(w, http.StatusBadGateway, "scanner registry is unavailable")
		return
	}
	m.handleListScanners(w, r)
}

// handlePollerStatus reports whether the poller loop is running.
//
//	@Summary		Poller status
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} pollerStatus
//	@Router			/fleet/poller [get]
func (m *Module) handlePollerStatus(w http.ResponseWriter, r *http.Request) {
	fleetWriteJSON(w, http.StatusOK, pollerStatus{Running: m.poller.Running()})
}

// handlePollerStart starts the polling loop.
//
//	@Summary		Start poller
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} pollerStatus
//	@Router			/fleet/poller/start [post]
func (m *Module) handlePollerStart(w http.ResponseWriter, r *http.Request) {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	m.poller.Start(ctx)
	fleetWriteJSON(w, http.StatusOK, pollerStatus{Running: true})
}

// handlePollerStop stops the polling loop.
//
//	@Summary		Stop poller
//	@Tags			fleet
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} pollerStatus
//	@Router			/fleet/poller/stop [post]
func (m *Module) handlePollerStop(w http.ResponseWriter, r *http.Request) {
	m.poller.Stop()
	fleetWriteJSON(w, http.StatusOK, pollerStatus{Running: false})
}

// lookupScanner resolves the {key} path value against the snapshot and
// writes the 404 itself when the scanner is unknown.
func (m *Module) lookupScanner(w http.ResponseWriter, r *http.Request) (models.Scanner, bool) {
	key := r.PathValue("key")
	if key == "" {
		fleetWriteError(w, http.StatusBadRequest, "scanner key is required")
		return models.Scanner{}, false
	}
	scanner, ok := m.snapshot.Find(key)
	if !ok {
		fleetWriteError(w, http.StatusNotFound, ErrScannerNotFound.Error())
		return models.Scanner{}, false
	}
	return scanner, true
}

// -- helpers --

func fleetWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func fleetWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://scanfleet.io/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
