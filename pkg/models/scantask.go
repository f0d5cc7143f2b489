package models

import "time"

// ScanTaskStatus represents the state of a discovery scan task.
type ScanTaskStatus string

const (
	ScanTaskRunning   ScanTaskStatus = "running"
	ScanTaskCompleted ScanTaskStatus = "completed"
	ScanTaskCancelled ScanTaskStatus = "cancelled"
	ScanTaskFailed    ScanTaskStatus = "failed"
)

// ScanTask is one discovery scan. At most one task may be running
// system-wide at any time; the scan-task service enforces this.
type ScanTask struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Target          string         `json:"target"`
	Status          ScanTaskStatus `json:"status"`
	ProgressPercent int            `json:"progress_percent"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
}

// ActiveScan is the observer-side view of the single running scan task,
// or absent when no scan is running.
type ActiveScan struct {
	ScanTaskID      string         `json:"scan_task_id"`
	Name            string         `json:"name"`
	Target          string         `json:"target"`
	Status          ScanTaskStatus `json:"status"`
	ProgressPercent int            `json:"progress_percent"`
	StartedAt       time.Time      `json:"started_at"`
}

// WorkflowProgress is derived each request from counts of existing
// resources; the booleans are all-or-nothing, not partial fractions.
type WorkflowProgress struct {
	Discovery  bool `json:"discovery"`
	Assets     bool `json:"assets"`
	Groups     bool `json:"groups"`
	Operations bool `json:"operations"`
}
