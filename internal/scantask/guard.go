package scantask

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// ScanControl is the slice of the service the guard needs.
type ScanControl interface {
	Active(ctx context.Context) (*models.ActiveScan, error)
	Start(ctx context.Context, name, target string) (*models.ScanTask, error)
	Cancel(ctx context.Context, id string, confirmed bool) error
}

// Guard fronts the scan-task service with a cached view of the active scan.
// Starting a scan while the cache says one is running is rejected locally,
// without touching the service at all; the service's own transaction remains
// the authority for the race the cache cannot see. Both paths surface the
// identical ErrScanAlreadyRunning.
type Guard struct {
	service ScanControl
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	active    *models.ActiveScan
	checkedAt time.Time
}

// NewGuard creates a guard over the service. now defaults to time.Now when
// nil.
func NewGuard(service ScanControl, logger *zap.Logger, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{service: service, logger: logger, now: now}
}

// CheckActive refreshes the cached active-scan view from the service. A
// failed check keeps the previous cache: a service hiccup must not make the
// guard wave a duplicate scan through.
func (g *Guard) CheckActive(ctx context.Context) error {
	active, err := g.service.Active(ctx)
	if err != nil {
		g.logger.Warn("active scan check failed", zap.Error(err))
		return err
	}

	g.mu.Lock()
	g.active = active
	g.checkedAt = g.now()
	g.mu.Unlock()
	return nil
}

// Active returns the cached active scan, or nil when none is believed
// running.
func (g *Guard) Active() *models.ActiveScan {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.active == nil {
		return nil
	}
	active := *g.active
	return &active
}

// CheckedAt returns when the cache was last refreshed.
func (g *Guard) CheckedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.checkedAt
}

// StartScan starts a scan through the guard. If the cache already shows a
// running scan, the start is rejected immediately and the service is never
// called. Otherwise the service decides; a conflict there also refreshes
// the cache so the guard rejects locally next time.
func (g *Guard) StartScan(ctx context.Context, name, target string) (*models.ScanTask, error) {
	if g.Active() != nil {
		return nil, ErrScanAlreadyRunning
	}

	task, err := g.service.Start(ctx, name, target)
	if errors.Is(err, ErrScanAlreadyRunning) {
		if refreshErr := g.CheckActive(ctx); refreshErr != nil {
			g.logger.Warn("cache refresh after conflict failed", zap.Error(refreshErr))
		}
		return nil, ErrScanAlreadyRunning
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.active = &models.ActiveScan{
		ScanTaskID:      task.ID,
		Name:            task.Name,
		Target:          task.Target,
		Status:          task.Status,
		ProgressPercent: task.ProgressPercent,
		StartedAt:       task.StartedAt,
	}
	g.checkedAt = g.now()
	g.mu.Unlock()
	return task, nil
}

// CancelScan cancels the running scan through the guard and clears the
// cache on success, so the next start does not wait for a poll cycle.
func (g *Guard) CancelScan(ctx context.Context, id string, confirmed bool) error {
	if err := g.service.Cancel(ctx, id, confirmed); err != nil {
		return err
	}

	g.mu.Lock()
	if g.active != nil && g.active.ScanTaskID == id {
		g.active = nil
		g.checkedAt = g.now()
	}
	g.mu.Unlock()
	return nil
}

// Invalidate clears the cached view. The next StartScan consults the
// service directly.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	g.active = nil
	g.mu.Unlock()
}
