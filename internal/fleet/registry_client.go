package fleet

import (
	"context"
	"fmt"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// RegistryClient lists the configured scanner fleet, including the implicit
// default scanner. Failure means "fleet unknown this cycle": callers retain
// the previous successful snapshot rather than clearing their view.
type RegistryClient interface {
	ListScanners(ctx context.Context) ([]models.Scanner, error)
}

// httpRegistryClient talks to the scanner-registry backend.
type httpRegistryClient struct {
	api     *apiClient
	baseURL string
}

// NewRegistryClient creates a RegistryClient for the registry backend at
// baseURL.
func NewRegistryClient(api *apiClient, baseURL string) RegistryClient {
	return &httpRegistryClient{api: api, baseURL: baseURL}
}

// ListScanners fetches the fleet and resolves the kind tag and identity of
// every record. Two scanners resolving to the same effective key within one
// response is a registry inconsistency and is reported as
// ErrRegistryUnavailable so the previous coherent snapshot stays in place.
func (c *httpRegistryClient) ListScanners(ctx context.Context) ([]models.Scanner, error) {
	var scanners []models.Scanner
	if err := c.api.getJSON(ctx, c.baseURL+"/satellite-scanners", &scanners); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	seen := make(map[string]struct{}, len(scanners))
	for i := range scanners {
		scanners[i].ResolveKind()
		key := scanners[i].EffectiveKey()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate scanner key %q", ErrRegistryUnavailable, key)
		}
		seen[key] = struct{}{}
	}
	return scanners, nil
}
