// Package plugin defines the module contract for ScanFleet. Every feature
// module (fleet, scantask, ...) implements Plugin and is composed at compile
// time in the server binary.
package plugin

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// API version constants for plugin compatibility checks.
const (
	// APIVersionMin is the oldest plugin API version the registry accepts.
	APIVersionMin = 1

	// APIVersionCurrent is the plugin API version this build implements.
	APIVersionCurrent = 1
)

// PluginInfo describes a plugin's identity and requirements.
type PluginInfo struct {
	// Name is the plugin's unique identifier (e.g., "fleet", "scantask").
	Name string

	// Version is the plugin's semantic version.
	Version string

	// Description is a short human-readable summary.
	Description string

	// Dependencies lists names of plugins that must be available first.
	Dependencies []string

	// APIVersion is the plugin API version the plugin was built against.
	APIVersion int

	// Required marks plugins whose failure aborts startup instead of
	// disabling the plugin.
	Required bool
}

// Dependencies carries everything a plugin may need at Init time.
// Unused fields are nil; plugins must tolerate missing optional services.
type Dependencies struct {
	Logger *zap.Logger
	Config Config
	Bus    EventBus
	Store  Store
}

// Plugin is the lifecycle contract every ScanFleet module implements.
type Plugin interface {
	// Info returns the plugin's identity and requirements.
	Info() PluginInfo

	// Init prepares the plugin with its dependencies. No background work yet.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins the plugin's background operations.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the plugin.
	Stop(ctx context.Context) error
}

// Route represents an HTTP route exposed by a plugin. Routes are mounted
// under /api/v1/{plugin-name} by the server.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Config is a read-only view of a plugin's configuration subtree.
// Implementations must be nil-safe: a missing subtree yields zero values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
	IsSet(key string) bool
	Sub(key string) Config
	Unmarshal(target any) error
}
