package scantask

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/pkg/models"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

// Event topics published by the scan-task service.
const (
	TopicScanStarted  = "scantask.started"
	TopicScanFinished = "scantask.finished"
)

// ScanEventPayload is the payload for scan lifecycle events.
type ScanEventPayload struct {
	ScanTaskID string                `json:"scan_task_id"`
	Name       string                `json:"name"`
	Status     models.ScanTaskStatus `json:"status"`
}

// Service owns scan-task lifecycle and enforces the single-running-scan
// rule authoritatively, inside the start transaction.
type Service struct {
	tasks  *taskStore
	bus    plugin.EventBus
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the scan-task service. bus may be nil; now defaults to
// time.Now when nil.
func NewService(store plugin.Store, bus plugin.EventBus, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		tasks:  newTaskStore(store),
		bus:    bus,
		logger: logger,
		now:    now,
	}
}

// Start creates a new running scan task. ErrScanAlreadyRunning when another
// task is running.
func (s *Service) Start(ctx context.Context, name, target string) (*models.ScanTask, error) {
	name = strings.TrimSpace(name)
	target = strings.TrimSpace(target)
	if name == "" {
		return nil, fmt.Errorf("scan name is required")
	}
	if target == "" {
		return nil, fmt.Errorf("scan target is required")
	}

	task := &models.ScanTask{
		ID:        uuid.New().String(),
		Name:      name,
		Target:    target,
		Status:    models.ScanTaskRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.tasks.insert(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("scan started",
		zap.String("id", task.ID), zap.String("name", name), zap.String("target", target))
	s.publish(ctx, TopicScanStarted, task)
	return task, nil
}

// Active returns the running scan, or nil when no scan is running.
func (s *Service) Active(ctx context.Context) (*models.ActiveScan, error) {
	task, err := s.tasks.getActive(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	return &models.ActiveScan{
		ScanTaskID:      task.ID,
		Name:            task.Name,
		Target:          task.Target,
		Status:          task.Status,
		ProgressPercent: task.ProgressPercent,
		StartedAt:       task.StartedAt,
	}, nil
}

// Get returns one scan task by id.
func (s *Service) Get(ctx context.Context, id string) (*models.ScanTask, error) {
	return s.tasks.get(ctx, id)
}

// List returns recent scan tasks, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]models.ScanTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.tasks.list(ctx, limit)
}

// UpdateProgress records progress for the running task. Percent is clamped
// to [0, 100].
func (s *Service) UpdateProgress(ctx context.Context, id string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return s.tasks.updateProgress(ctx, id, percent)
}

// Complete finishes the running task successfully.
func (s *Service) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.ScanTaskCompleted)
}

// Fail finishes the running task as failed.
func (s *Service) Fail(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.ScanTaskFailed)
}

// Cancel finishes the running task as cancelled. confirmed must be true;
// cancellation destroys in-flight scan work and is never implied.
func (s *Service) Cancel(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	return s.finish(ctx, id, models.ScanTaskCancelled)
}

// CompletedCount reports how many scans have ever completed.
func (s *Service) CompletedCount(ctx context.Context) (int, error) {
	return s.tasks.countCompleted(ctx)
}

func (s *Service) finish(ctx context.Context, id string, status models.ScanTaskStatus) error {
	if err := s.tasks.finish(ctx, id, status, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("scan finished", zap.String("id", id), zap.String("status", string(status)))
	task, err := s.tasks.get(ctx, id)
	if err == nil {
		s.publish(ctx, TopicScanFinished, task)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, task *models.ScanTask) {
	if s.bus == nil {
		return
	}
	s.bus.PublishAsync(ctx, plugin.Event{
		Topic:     topic,
		Source:    "scantask",
		Timestamp: s.now().UTC(),
		Payload: ScanEventPayload{
			ScanTaskID: task.ID,
			Name:       task.Name,
			Status:     task.Status,
		},
	})
}
