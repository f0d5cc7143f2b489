// Package registry manages the lifecycle of all compiled-in plugins:
// registration, dependency validation, ordered init/start, and reverse-order
// shutdown. Optional plugins that fail are disabled; required ones abort
// startup.
package registry

import (
	"context"
	"fmt"

	"github.com/HerbHall/scanfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Registry holds all registered plugins and their resolved start order.
type Registry struct {
	plugins  map[string]plugin.Plugin
	order    []string // registration order until Validate, then topological
	disabled map[string]bool
	logger   *zap.Logger
}

// New creates an empty plugin registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a plugin. Names must be unique and non-empty.
func (r *Registry) Register(p plugin.Plugin) error {
	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}

	r.plugins[info.Name] = p
	r.order = append(r.order, info.Name)
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate checks API versions and dependency declarations, disables
// optional plugins that cannot run, and resolves the start order so every
// plugin starts after its dependencies. Cycles and unsatisfiable required
// plugins are errors.
func (r *Registry) Validate() error {
	// API version gate first; dependents of a disabled plugin cascade below.
	for name, p := range r.plugins {
		info := p.Info()
		if info.APIVersion >= plugin.APIVersionMin && info.APIVersion <= plugin.APIVersionCurrent {
			continue
		}
		if info.Required {
			return fmt.Errorf("required plugin %q has incompatible API version %d (supported %d..%d)",
				name, info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		}
		r.disable(name, "incompatible API version")
	}

	// Missing dependencies.
	for name, p := range r.plugins {
		for _, dep := range p.Info().Dependencies {
			if _, ok := r.plugins[dep]; ok {
				continue
			}
			if p.Info().Required {
				return fmt.Errorf("required plugin %q depends on missing plugin %q", name, dep)
			}
			r.disable(name, fmt.Sprintf("missing dependency %q", dep))
		}
	}

	r.cascadeDisable()

	order, err := r.topoSort()
	if err != nil {
		return err
	}
	r.order = order
	return nil
}

// IsDisabled reports whether the named plugin was disabled during
// validation or init.
func (r *Registry) IsDisabled(name string) bool {
	return r.disabled[name]
}

// InitAll initializes enabled plugins in dependency order. depsFor supplies
// the per-plugin dependency set (named logger, config subtree, shared
// services).
func (r *Registry) InitAll(ctx context.Context, depsFor func(name string) plugin.Dependencies) error {
	for _, name := range r.order {
		if r.disabled[name] {
			r.logger.Info("plugin disabled, skipping init", zap.String("name", name))
			continue
		}
		p := r.plugins[name]

		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := p.Init(ctx, depsFor(name)); err != nil {
			if p.Info().Required {
				return fmt.Errorf("initialize required plugin %q: %w", name, err)
			}
			r.logger.Warn("optional plugin failed to initialize, disabling",
				zap.String("name", name), zap.Error(err))
			r.disable(name, "init failed")
			r.cascadeDisable()
			continue
		}

		if v, ok := p.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				if p.Info().Required {
					return fmt.Errorf("validate config for required plugin %q: %w", name, err)
				}
				r.logger.Warn("optional plugin config invalid, disabling",
					zap.String("name", name), zap.Error(err))
				r.disable(name, "invalid config")
				r.cascadeDisable()
			}
		}
	}
	return nil
}

// StartAll starts enabled plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			return fmt.Errorf("start plugin %q: %w", name, err)
		}
	}
	return nil
}

// StopAll stops enabled plugins in reverse start order. Stop errors are
// logged, not propagated; shutdown continues.
func (r *Registry) StopAll(ctx context.Context) {
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if r.disabled[name] {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// All returns all registered plugins in resolved order, including disabled
// ones.
func (r *Registry) All() []plugin.Plugin {
	result := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns the routes of every enabled plugin implementing
// HTTPProvider, keyed by plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		hp, ok := r.plugins[name].(plugin.HTTPProvider)
		if !ok {
			continue
		}
		if pr := hp.Routes(); len(pr) > 0 {
			routes[name] = pr
		}
	}
	return routes
}

// Subscriptions returns the declared event subscriptions of every enabled
// plugin implementing EventSubscriber.
func (r *Registry) Subscriptions() []plugin.Subscription {
	var subs []plugin.Subscription
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		if es, ok := r.plugins[name].(plugin.EventSubscriber); ok {
			subs = append(subs, es.Subscriptions()...)
		}
	}
	return subs
}

func (r *Registry) disable(name, reason string) {
	if !r.disabled[name] {
		r.disabled[name] = true
		r.logger.Warn("plugin disabled", zap.String("name", name), zap.String("reason", reason))
	}
}

// cascadeDisable disables plugins whose dependencies are disabled, repeating
// until a fixed point.
func (r *Registry) cascadeDisable() {
	for changed := true; changed; {
		changed = false
		for name, p := range r.plugins {
			if r.disabled[name] {
				continue
			}
			for _, dep := range p.Info().Dependencies {
				if r.disabled[dep] {
					r.disable(name, fmt.Sprintf("dependency %q disabled", dep))
					changed = true
					break
				}
			}
		}
	}
}

// topoSort orders plugins so dependencies come first. Registration order
// breaks ties to keep startup deterministic.
func (r *Registry) topoSort() ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(r.plugins))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("plugin dependency cycle involving %q", name)
		}
		state[name] = visiting
		for _, dep := range r.plugins[name].Info().Dependencies {
			if _, ok := r.plugins[dep]; !ok {
				continue // already handled in Validate
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range r.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
