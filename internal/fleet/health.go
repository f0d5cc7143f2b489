package fleet

import (
	"context"
	"strings"
	"time"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// Messages surfaced in health records. The default-scanner message is a
// policy statement, not a failure: the default scanner has no process to
// probe.
const (
	msgDefaultScanner   = "Default scanner - health monitoring not available"
	msgHealthCheckError = "Health check failed"
)

// HealthProber runs one health check against a single scanner. The returned
// record always carries a terminal status; transport failures are absorbed
// into HealthStatusError so the poller and aggregator can proceed to the
// next scanner unconditionally.
type HealthProber interface {
	ProbeHealth(ctx context.Context, scanner models.Scanner) models.HealthRecord
}

// healthResponse is the registry's health endpoint payload. network_info is
// an optional side-channel carrying the scanner's detected topology.
type healthResponse struct {
	Status              string           `json:"status"`
	Message             string           `json:"message"`
	ResponseTimeSeconds float64          `json:"response_time_seconds"`
	NetworkInfo         *networkInfoBody `json:"network_info,omitempty"`
}

type networkInfoBody struct {
	Subnets    []string `json:"subnets"`
	Interfaces []struct {
		Name      string `json:"name"`
		IsUp      bool   `json:"is_up"`
		SpeedMbps int    `json:"speed_mbps"`
	} `json:"interfaces"`
}

// HealthProbe checks scanner health through the registry backend.
// Satellite-namespaced ids use the satellite-scanner endpoint; other real
// ids use the generic scanner endpoint. The same response carries the
// network_info side-channel, so ProbeScanner derives both the health and
// network views from a single call.
type HealthProbe struct {
	api     *apiClient
	baseURL string
	now     func() time.Time
}

// NewHealthProbe creates the production health probe. now defaults to
// time.Now when nil.
func NewHealthProbe(api *apiClient, baseURL string, now func() time.Time) *HealthProbe {
	if now == nil {
		now = time.Now
	}
	return &HealthProbe{api: api, baseURL: baseURL, now: now}
}

// ProbeHealth implements HealthProber with one health-endpoint call.
func (p *HealthProbe) ProbeHealth(ctx context.Context, scanner models.Scanner) models.HealthRecord {
	rec, _ := p.ProbeScanner(ctx, scanner)
	return rec
}

// ProbeScanner runs the single per-cycle health call for one scanner and
// returns both records built from its response. The scanner's agent is never
// contacted; one registry call covers both views.
func (p *HealthProbe) ProbeScanner(ctx context.Context, scanner models.Scanner) (models.HealthRecord, models.NetworkInfoRecord) {
	key := scanner.EffectiveKey()

	// The default scanner is synthesized, never probed. This is declared
	// behavior of the kind tag, not a fallback for failure.
	if scanner.Kind == models.ScannerKindDefault {
		health := models.HealthRecord{
			ScannerKey: key,
			Status:     models.HealthStatusDefault,
			Message:    msgDefaultScanner,
			CapturedAt: p.now().UTC(),
		}
		network := models.NetworkInfoRecord{
			ScannerKey: key,
			Subnets:    append([]string(nil), scanner.Subnets...),
		}
		return health, network
	}

	started := p.now()
	var resp healthResponse
	if err := p.api.getJSON(ctx, healthEndpoint(p.baseURL, scanner), &resp); err != nil {
		health := models.HealthRecord{
			ScannerKey: key,
			Status:     models.HealthStatusError,
			Message:    msgHealthCheckError,
			CapturedAt: p.now().UTC(),
		}
		return health, models.NetworkInfoRecord{ScannerKey: key, Error: "network info unavailable"}
	}

	elapsed := p.now().Sub(started).Seconds()
	if resp.ResponseTimeSeconds > 0 {
		elapsed = resp.ResponseTimeSeconds
	}

	status := models.HealthStatusUnhealthy
	if strings.EqualFold(resp.Status, "healthy") || strings.EqualFold(resp.Status, "ok") {
		status = models.HealthStatusHealthy
	}

	health := models.HealthRecord{
		ScannerKey:          key,
		Status:              status,
		Message:             resp.Message,
		ResponseTimeSeconds: elapsed,
		CapturedAt:          p.now().UTC(),
	}
	return health, networkRecordFrom(key, &resp)
}

// healthEndpoint picks the endpoint family by id namespace: ids inside the
// satellite namespace use the satellite-scanner endpoint, any other real id
// the generic scanner endpoint.
func healthEndpoint(baseURL string, scanner models.Scanner) string {
	if strings.HasPrefix(scanner.ID, models.SatelliteIDPrefix) {
		return baseURL + "/satellite-scanners/" + scanner.ID + "/health"
	}
	return baseURL + "/scanners/" + scanner.ID + "/health"
}
