package fleet

import (
	"context"
	"fmt"
	"net/http"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// NetworkProber fetches detected-subnet and interface information for one
// scanner. Topology for satellite scanners is reported as a side-channel of
// the registry's health endpoint; there is no dedicated network call path
// to the scanner itself except the explicit refresh action.
type NetworkProber interface {
	ProbeNetwork(ctx context.Context, scanner models.Scanner) models.NetworkInfoRecord

	// RefreshNetworks asks the scanner agent directly to re-detect its
	// local subnets. Only scanners with a real id have an agent process to
	// contact; the default scanner yields ErrActionDenied.
	RefreshNetworks(ctx context.Context, scanner models.Scanner) error
}

// httpNetworkProbe implements NetworkProber against the registry backend
// and, for refresh only, the scanner agent itself.
type httpNetworkProbe struct {
	api     *apiClient
	baseURL string
}

// NewNetworkProbe creates the production NetworkProber.
func NewNetworkProbe(api *apiClient, baseURL string) NetworkProber {
	return &httpNetworkProbe{api: api, baseURL: baseURL}
}

func (p *httpNetworkProbe) ProbeNetwork(ctx context.Context, scanner models.Scanner) models.NetworkInfoRecord {
	key := scanner.EffectiveKey()

	// The default scanner has no agent; its record is synthesized from the
	// subnets configured in the registry.
	if scanner.Kind == models.ScannerKindDefault {
		return models.NetworkInfoRecord{
			ScannerKey: key,
			Subnets:    append([]string(nil), scanner.Subnets...),
		}
	}

	var resp healthResponse
	if err := p.api.getJSON(ctx, healthEndpoint(p.baseURL, scanner), &resp); err != nil {
		return models.NetworkInfoRecord{
			ScannerKey: key,
			Error:      "network info unavailable",
		}
	}
	return networkRecordFrom(key, &resp)
}

// networkRecordFrom builds the network view from a health response. The
// per-tick probe and the on-demand probe share this mapping so both paths
// record identical topology.
func networkRecordFrom(key string, resp *healthResponse) models.NetworkInfoRecord {
	record := models.NetworkInfoRecord{ScannerKey: key}
	if resp.NetworkInfo == nil {
		record.Subnets = []string{}
		return record
	}

	record.Subnets = resp.NetworkInfo.Subnets
	if record.Subnets == nil {
		record.Subnets = []string{}
	}
	for _, iface := range resp.NetworkInfo.Interfaces {
		record.Interfaces = append(record.Interfaces, models.ScannerInterface{
			Name:      iface.Name,
			IsUp:      iface.IsUp,
			SpeedMbps: iface.SpeedMbps,
		})
	}
	return record
}

func (p *httpNetworkProbe) RefreshNetworks(ctx context.Context, scanner models.Scanner) error {
	if scanner.Kind == models.ScannerKindDefault || scanner.ID == "" {
		return fmt.Errorf("%w: default scanner has no agent to refresh", ErrActionDenied)
	}
	if scanner.URL == "" {
		return fmt.Errorf("%w: scanner %q has no agent URL", ErrActionDenied, scanner.EffectiveKey())
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := p.api.postJSON(ctx, scanner.URL+"/refresh-networks", nil, &resp); err != nil {
		if httpStatus(err) == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrActionDenied, err)
		}
		return fmt.Errorf("refresh networks for %q: %w", scanner.EffectiveKey(), err)
	}
	return nil
}
