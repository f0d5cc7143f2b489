// Package fleet monitors the satellite-scanner fleet: it polls the scanner
// registry, probes each scanner's health and network topology, and runs
// on-demand per-scanner diagnostics.
package fleet

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/internal/auth"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

const (
	defaultPollInterval   = 30 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// Module is the fleet plugin.
type Module struct {
	logger     *zap.Logger
	bus        plugin.EventBus
	registerer prometheus.Registerer

	snapshot    *Snapshot
	diagnostics *Diagnostics
	poller      *Poller
	network     NetworkProber

	autoStart bool
	runCtx    context.Context
}

// New creates the fleet module with metrics on the default Prometheus
// registerer.
func New() *Module {
	return &Module{registerer: prometheus.DefaultRegisterer}
}

// NewWithRegisterer creates the fleet module with metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Module {
	return &Module{registerer: reg}
}

// Info implements plugin.Plugin.
func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "fleet",
		Version:     "0.1.0",
		Description: "Satellite-scanner fleet health monitoring and diagnostics",
		APIVersion:  plugin.APIVersionCurrent,
		Required:    true,
	}
}

// Init implements plugin.Plugin. Configuration lives under plugins.fleet:
// registry_url (required), poll_interval, request_timeout, api_token and
// auto_start.
func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	cfg := deps.Config
	registryURL := cfg.GetString("registry_url")
	if registryURL == "" {
		return fmt.Errorf("fleet: registry_url is required")
	}

	interval := cfg.GetDuration("poll_interval")
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := cfg.GetDuration("request_timeout")
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	m.autoStart = true
	if cfg.IsSet("auto_start") {
		m.autoStart = cfg.GetBool("auto_start")
	}

	var token auth.TokenSource
	if t := cfg.GetString("api_token"); t != "" {
		token = auth.StaticToken(t)
	}

	api := newAPIClient(&http.Client{Timeout: timeout}, token)
	registry := NewRegistryClient(api, registryURL)
	health := NewHealthProbe(api, registryURL, nil)
	m.network = NewNetworkProbe(api, registryURL)
	logs := NewLogProbe()

	m.snapshot = NewSnapshot()
	m.diagnostics = NewDiagnostics(health, m.network, logs, m.logger, nil)

	metrics := NewMetrics(m.registerer)
	m.poller = NewPoller(registry, health, m.snapshot, m.bus, metrics, m.logger, interval, nil)

	m.logger.Info("fleet module initialized",
		zap.String("registry_url", registryURL),
		zap.Duration("poll_interval", interval),
	)
	return nil
}

// Start implements plugin.Plugin. The poller launches unless auto_start is
// disabled; it can still be started through the API.
func (m *Module) Start(ctx context.Context) error {
	m.runCtx = ctx
	if m.autoStart {
		m.poller.Start(ctx)
	}
	return nil
}

// Stop implements plugin.Plugin.
func (m *Module) Stop(ctx context.Context) error {
	m.poller.Stop()
	return nil
}
