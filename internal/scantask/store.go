package scantask

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/scanfleet/pkg/models"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

// Migrations returns the scan-task schema. The partial unique index is the
// database-level backstop for the single-running-scan rule; the service
// also checks inside its start transaction so callers get a clean error
// instead of a constraint violation.
func Migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create scan_tasks table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS scan_tasks (
						id               TEXT PRIMARY KEY,
						name             TEXT NOT NULL,
						target           TEXT NOT NULL,
						status           TEXT NOT NULL,
						progress_percent INTEGER NOT NULL DEFAULT 0,
						started_at       DATETIME NOT NULL,
						ended_at         DATETIME
					);
					CREATE UNIQUE INDEX IF NOT EXISTS idx_scan_tasks_single_running
						ON scan_tasks(status) WHERE status = 'running';
					CREATE INDEX IF NOT EXISTS idx_scan_tasks_started
						ON scan_tasks(started_at);
				`)
				return err
			},
		},
	}
}

// taskStore persists scan tasks in the shared SQLite store.
type taskStore struct {
	store plugin.Store
}

func newTaskStore(store plugin.Store) *taskStore {
	return &taskStore{store: store}
}

// insert creates the task inside a transaction that first verifies no other
// task is running. ErrScanAlreadyRunning when one is.
func (s *taskStore) insert(ctx context.Context, task *models.ScanTask) error {
	return s.store.Tx(ctx, func(tx *sql.Tx) error {
		var running int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM scan_tasks WHERE status = ?`, models.ScanTaskRunning,
		).Scan(&running); err != nil {
			return fmt.Errorf("count running scans: %w", err)
		}
		if running > 0 {
			return ErrScanAlreadyRunning
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_tasks (id, name, target, status, progress_percent, started_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			task.ID, task.Name, task.Target, task.Status, task.ProgressPercent, task.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("insert scan task: %w", err)
		}
		return nil
	})
}

func (s *taskStore) get(ctx context.Context, id string) (*models.ScanTask, error) {
	row := s.store.DB().QueryRowContext(ctx, `
		SELECT id, name, target, status, progress_percent, started_at, ended_at
		FROM scan_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan task %q: %w", id, err)
	}
	return task, nil
}

// getActive returns the running task, or nil when no scan is running.
func (s *taskStore) getActive(ctx context.Context) (*models.ScanTask, error) {
	row := s.store.DB().QueryRowContext(ctx, `
		SELECT id, name, target, status, progress_percent, started_at, ended_at
		FROM scan_tasks WHERE status = ? LIMIT 1`, models.ScanTaskRunning)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active scan: %w", err)
	}
	return task, nil
}

func (s *taskStore) list(ctx context.Context, limit int) ([]models.ScanTask, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, name, target, status, progress_percent, started_at, ended_at
		FROM scan_tasks ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.ScanTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan tasks: %w", err)
	}
	return tasks, nil
}

// updateProgress records progress for a running task only.
func (s *taskStore) updateProgress(ctx context.Context, id string, percent int) error {
	res, err := s.store.DB().ExecContext(ctx,
		`UPDATE scan_tasks SET progress_percent = ? WHERE id = ? AND status = ?`,
		percent, id, models.ScanTaskRunning)
	if err != nil {
		return fmt.Errorf("update scan progress: %w", err)
	}
	return s.requireRunningRow(ctx, res, id)
}

// finish moves a running task to a terminal status.
func (s *taskStore) finish(ctx context.Context, id string, status models.ScanTaskStatus, endedAt time.Time) error {
	res, err := s.store.DB().ExecContext(ctx,
		`UPDATE scan_tasks SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		status, endedAt, id, models.ScanTaskRunning)
	if err != nil {
		return fmt.Errorf("finish scan task: %w", err)
	}
	return s.requireRunningRow(ctx, res, id)
}

// countCompleted returns how many scans have ever completed.
func (s *taskStore) countCompleted(ctx context.Context) (int, error) {
	var count int
	err := s.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_tasks WHERE status = ?`, models.ScanTaskCompleted,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed scans: %w", err)
	}
	return count, nil
}

// requireRunningRow distinguishes "no such task" from "task not running"
// after a guarded UPDATE matched zero rows.
func (s *taskStore) requireRunningRow(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	return ErrNotRunning
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.ScanTask, error) {
	var task models.ScanTask
	var endedAt sql.NullTime
	if err := row.Scan(&task.ID, &task.Name, &task.Target, &task.Status,
		&task.ProgressPercent, &task.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		task.EndedAt = &t
	}
	return &task, nil
}
