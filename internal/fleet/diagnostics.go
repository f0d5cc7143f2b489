package fleet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// Diagnostics runs the troubleshooting pipeline for individual scanners and
// keeps the latest report per scanner key. The pipeline order is fixed:
// health, then network, then logs. Each step's result is attached to the
// report as soon as it resolves, so readers polling the report watch it
// fill in while the status stays running.
type Diagnostics struct {
	health  HealthProber
	network NetworkProber
	logs    LogProber
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	reports map[string]*models.DiagnosticsReport
}

// NewDiagnostics creates a diagnostics runner. now defaults to time.Now
// when nil.
func NewDiagnostics(health HealthProber, network NetworkProber, logs LogProber, logger *zap.Logger, now func() time.Time) *Diagnostics {
	if now == nil {
		now = time.Now
	}
	return &Diagnostics{
		health:  health,
		network: network,
		logs:    logs,
		logger:  logger,
		now:     now,
		reports: make(map[string]*models.DiagnosticsReport),
	}
}

// Start begins a diagnostics run for the scanner and returns the initial
// running report. Starting again for the same scanner discards the previous
// report and begins fresh; the old run's remaining steps write into a report
// that is no longer registered, so they cannot corrupt the new one.
func (d *Diagnostics) Start(ctx context.Context, scanner models.Scanner) models.DiagnosticsReport {
	report := d.begin(scanner)
	go d.run(context.WithoutCancel(ctx), scanner, report)
	return copyReport(report)
}

// Run executes the pipeline synchronously and returns the completed report.
func (d *Diagnostics) Run(ctx context.Context, scanner models.Scanner) models.DiagnosticsReport {
	report := d.begin(scanner)
	d.run(ctx, scanner, report)
	return d.snapshot(report)
}

func (d *Diagnostics) begin(scanner models.Scanner) *models.DiagnosticsReport {
	key := scanner.EffectiveKey()
	report := &models.DiagnosticsReport{
		ScannerKey: key,
		Status:     models.DiagnosticsRunning,
		StartedAt:  d.now().UTC(),
	}

	d.mu.Lock()
	d.reports[key] = report
	d.mu.Unlock()

	d.logger.Info("diagnostics started", zap.String("scanner", key))
	return report
}

func (d *Diagnostics) run(ctx context.Context, scanner models.Scanner, report *models.DiagnosticsReport) {
	health := d.health.ProbeHealth(ctx, scanner)
	d.attach(report, func(r *models.DiagnosticsReport) { r.Health = &health })

	network := d.network.ProbeNetwork(ctx, scanner)
	d.attach(report, func(r *models.DiagnosticsReport) { r.NetworkInfo = &network })

	logs := d.logs.ProbeLogs(ctx, scanner)
	done := d.now().UTC()
	d.attach(report, func(r *models.DiagnosticsReport) {
		r.Logs = &logs
		r.Status = models.DiagnosticsCompleted
		r.CompletedAt = &done
	})

	d.logger.Info("diagnostics completed",
		zap.String("scanner", report.ScannerKey),
		zap.String("health_status", string(health.Status)),
	)
}

// attach mutates the report under the lock. A superseded or discarded run
// keeps mutating its own struct, which is no longer registered and so is
// never returned to readers.
func (d *Diagnostics) attach(report *models.DiagnosticsReport, mutate func(*models.DiagnosticsReport)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mutate(report)
	if d.reports[report.ScannerKey] != report {
		d.logger.Debug("diagnostics run superseded", zap.String("scanner", report.ScannerKey))
	}
}

// Get returns the current report for a scanner key.
func (d *Diagnostics) Get(key string) (models.DiagnosticsReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	report, ok := d.reports[key]
	if !ok {
		return models.DiagnosticsReport{}, false
	}
	return copyReport(report), true
}

// Discard drops the report for a scanner key. An in-flight run keeps
// writing to its own struct but the result is unreachable.
func (d *Diagnostics) Discard(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.reports[key]; !ok {
		return false
	}
	delete(d.reports, key)
	return true
}

func (d *Diagnostics) snapshot(report *models.DiagnosticsReport) models.DiagnosticsReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyReport(report)
}

// copyReport deep-copies a report so callers never share pointers with the
// running pipeline. Caller holds the lock or owns the report exclusively.
func copyReport(r *models.DiagnosticsReport) models.DiagnosticsReport {
	out := *r
	if r.Health != nil {
		h := *r.Health
		out.Health = &h
	}
	if r.NetworkInfo != nil {
		n := *r.NetworkInfo
		out.NetworkInfo = &n
	}
	if r.Logs != nil {
		l := *r.Logs
		out.Logs = &l
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
