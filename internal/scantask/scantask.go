package scantask

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/internal/auth"
	"github.com/HerbHall/scanfleet/internal/fleet"
	"github.com/HerbHall/scanfleet/pkg/models"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

const (
	defaultGuardPollInterval = 5 * time.Second
	defaultSummaryTimeout    = 10 * time.Second
)

// Module is the scantask plugin.
type Module struct {
	logger   *zap.Logger
	service  *Service
	guard    *Guard
	workflow *Workflow

	pollInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates the scantask module.
func New() *Module {
	return &Module{}
}

// Info implements plugin.Plugin.
func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "scantask",
		Version:     "0.1.0",
		Description: "Discovery scan task lifecycle with single-active-scan enforcement",
		APIVersion:  plugin.APIVersionCurrent,
	}
}

// Init implements plugin.Plugin. Configuration lives under plugins.scantask:
// poll_interval for the guard refresh, registry_url and api_token for the
// workflow summary (optional).
func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if deps.Store == nil {
		return fmt.Errorf("scantask: store is required")
	}

	if err := deps.Store.Migrate(ctx, "scantask", Migrations()); err != nil {
		return fmt.Errorf("scantask: migrate: %w", err)
	}

	cfg := deps.Config
	m.pollInterval = cfg.GetDuration("poll_interval")
	if m.pollInterval <= 0 {
		m.pollInterval = defaultGuardPollInterval
	}

	m.service = NewService(deps.Store, deps.Bus, m.logger, nil)
	m.guard = NewGuard(m.service, m.logger, nil)

	var summary SummarySource
	if base := cfg.GetString("registry_url"); base != "" {
		var token auth.TokenSource
		if t := cfg.GetString("api_token"); t != "" {
			token = auth.StaticToken(t)
		}
		summary = NewSummarySource(&http.Client{Timeout: defaultSummaryTimeout}, base, token)
	}
	m.workflow = NewWorkflow(m.service, summary)

	m.logger.Info("scantask module initialized", zap.Duration("poll_interval", m.pollInterval))
	return nil
}

// Start implements plugin.Plugin. It launches the guard refresh loop.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.pollLoop(runCtx, m.done)
	return nil
}

// Stop implements plugin.Plugin.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (m *Module) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := m.guard.CheckActive(ctx); err != nil {
		m.logger.Debug("initial active scan check failed", zap.Error(err))
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.guard.CheckActive(ctx); err != nil {
				m.logger.Debug("active scan check failed", zap.Error(err))
			}
		}
	}
}

// Subscriptions implements plugin.EventSubscriber. A scanner turning
// unhealthy while a scan is running is worth surfacing in the log, since
// the scan's results for that scanner's subnets are suspect.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: fleet.TopicHealthChanged, Handler: m.onHealthChanged},
	}
}

func (m *Module) onHealthChanged(ctx context.Context, event plugin.Event) {
	payload, ok := event.Payload.(fleet.HealthChangedPayload)
	if !ok {
		return
	}
	if payload.Status != models.HealthStatusUnhealthy && payload.Status != models.HealthStatusError {
		return
	}
	if active := m.guard.Active(); active != nil {
		m.logger.Warn("scanner degraded during active scan",
			zap.String("scanner", payload.ScannerKey),
			zap.String("status", string(payload.Status)),
			zap.String("scan_task_id", active.ScanTaskID),
		)
	}
}
