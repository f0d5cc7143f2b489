package fleet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/pkg/models"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

// TopicHealthChanged is published when a scanner's health status differs
// from its previous record.
const TopicHealthChanged = "fleet.health_changed"

// HealthChangedPayload is the payload for TopicHealthChanged events.
type HealthChangedPayload struct {
	ScannerKey string              `json:"scanner_key"`
	Status     models.HealthStatus `json:"status"`
	Message    string              `json:"message"`
}

// FleetProber runs the single per-cycle call for one scanner and derives
// both the health and network views from its response. Each scanner sees
// exactly one health-endpoint call per cycle.
type FleetProber interface {
	ProbeScanner(ctx context.Context, scanner models.Scanner) (models.HealthRecord, models.NetworkInfoRecord)
}

// Poller drives the periodic fleet refresh: one registry fetch per cycle,
// then one probe fanned out per scanner. It owns its own lifecycle so it can
// be stopped and restarted independently of the module, and Tick is exported
// so tests drive cycles deterministically instead of waiting on the ticker.
type Poller struct {
	registry RegistryClient
	prober   FleetProber
	snapshot *Snapshot
	bus      plugin.EventBus
	metrics  *Metrics
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
}

// NewPoller assembles a poller. bus and metrics may be nil; now defaults to
// time.Now when nil.
func NewPoller(registry RegistryClient, prober FleetProber, snapshot *Snapshot, bus plugin.EventBus, metrics *Metrics, logger *zap.Logger, interval time.Duration, now func() time.Time) *Poller {
	if now == nil {
		now = time.Now
	}
	return &Poller{
		registry: registry,
		prober:   prober,
		snapshot: snapshot,
		bus:      bus,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		now:      now,
	}
}

// Start launches the polling loop. The first cycle runs immediately.
// Starting an already running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(runCtx, p.done)
	p.logger.Info("fleet poller started", zap.Duration("interval", p.interval))
}

// Stop halts the polling loop and waits for the in-flight cycle to finish.
// The generation advances before the run context is cancelled, so a probe
// still in flight finds its results stale and commits nothing: stopping
// mid-cycle must not turn a cancelled request into a recorded error.
// Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	if cancel != nil {
		p.generation++
	}
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("fleet poller stopped")
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := p.Tick(ctx); err != nil {
		p.logger.Warn("fleet poll failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Warn("fleet poll failed", zap.Error(err))
			}
		}
	}
}

// Tick runs one full poll cycle synchronously: fetch the fleet, replace the
// snapshot list, probe every scanner concurrently, wait for all probes.
// A registry failure leaves the previous snapshot untouched. Probes are not
// retried; the next cycle overwrites whatever this one recorded.
func (p *Poller) Tick(ctx context.Context) error {
	gen := p.currentGeneration()

	scanners, err := p.registry.ListScanners(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PollsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	p.snapshot.SetScanners(scanners, p.now().UTC())
	if p.metrics != nil {
		p.metrics.PollsTotal.WithLabelValues("ok").Inc()
		p.metrics.FleetSize.Set(float64(len(scanners)))
	}

	var wg sync.WaitGroup
	for _, scanner := range scanners {
		wg.Add(1)
		go func(sc models.Scanner) {
			defer wg.Done()
			p.probeOne(ctx, sc, gen)
		}(scanner)
	}
	wg.Wait()
	return nil
}

func (p *Poller) probeOne(ctx context.Context, scanner models.Scanner, gen uint64) {
	started := p.now()
	health, network := p.prober.ProbeScanner(ctx, scanner)
	if p.metrics != nil {
		p.metrics.ProbeDuration.WithLabelValues("health").Observe(p.now().Sub(started).Seconds())
		p.metrics.ProbesTotal.WithLabelValues("health", string(health.Status)).Inc()
		status := "ok"
		if network.Error != "" {
			status = "error"
		}
		p.metrics.ProbesTotal.WithLabelValues("network", status).Inc()
	}

	// A Stop since this cycle began means the results are stale; nothing
	// from a deactivated cycle may reach the snapshot or the bus.
	if !p.generationCurrent(gen) {
		p.logger.Debug("dropped results from a stopped cycle", zap.String("scanner", health.ScannerKey))
		return
	}

	committed, changed := p.snapshot.SetHealth(health)
	if committed && changed {
		p.publishHealthChanged(ctx, health)
	}
	if !committed {
		p.logger.Debug("dropped late health record", zap.String("scanner", health.ScannerKey))
	}
	p.snapshot.SetNetwork(network)
}

func (p *Poller) currentGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *Poller) generationCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == gen
}

func (p *Poller) publishHealthChanged(ctx context.Context, rec models.HealthRecord) {
	if p.bus == nil {
		return
	}
	p.bus.PublishAsync(ctx, plugin.Event{
		Topic:     TopicHealthChanged,
		Source:    "fleet",
		Timestamp: p.now().UTC(),
		Payload: HealthChangedPayload{
			ScannerKey: rec.ScannerKey,
			Status:     rec.Status,
			Message:    rec.Message,
		},
	})
}
