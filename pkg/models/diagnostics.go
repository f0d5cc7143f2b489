package models

import "time"

// HealthStatus represents the outcome of one health probe.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDefault   HealthStatus = "default"
	HealthStatusError     HealthStatus = "error"
)

// HealthRecord is the result of a single health probe against one scanner.
// A record is created fresh on every probe and fully replaces the previous
// entry for its key; records are never merged.
type HealthRecord struct {
	ScannerKey          string       `json:"scanner_key"`
	Status              HealthStatus `json:"status"`
	Message             string       `json:"message"`
	ResponseTimeSeconds float64      `json:"response_time_seconds,omitempty"`
	CapturedAt          time.Time    `json:"captured_at"`
}

// ScannerInterface is one network interface reported by a scanner agent.
type ScannerInterface struct {
	Name      string `json:"name"`
	IsUp      bool   `json:"is_up"`
	SpeedMbps int    `json:"speed_mbps,omitempty"`
}

// NetworkInfoRecord holds the detected-subnet and interface information for
// one scanner. For the default scanner it is synthesized from configured
// subnets rather than probed.
type NetworkInfoRecord struct {
	ScannerKey string             `json:"scanner_key"`
	Subnets    []string           `json:"subnets"`
	Interfaces []ScannerInterface `json:"interfaces,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// LogRecord is a log-availability notice for one scanner. Remote log
// streaming is not implemented; the record carries the policy wording, not
// log lines.
type LogRecord struct {
	ScannerKey    string     `json:"scanner_key"`
	Message       string     `json:"message"`
	Note          string     `json:"note,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	Status        string     `json:"status,omitempty"`
}

// DiagnosticsStatus tracks the lifecycle of a troubleshooting report.
type DiagnosticsStatus string

const (
	DiagnosticsRunning   DiagnosticsStatus = "running"
	DiagnosticsCompleted DiagnosticsStatus = "completed"
)

// DiagnosticsReport is the merged troubleshooting report for one scanner.
// Sub-results are attached as each probe completes; Status flips to
// completed only after all three probes have resolved.
type DiagnosticsReport struct {
	ScannerKey  string             `json:"scanner_key"`
	Status      DiagnosticsStatus  `json:"status"`
	Health      *HealthRecord      `json:"health,omitempty"`
	NetworkInfo *NetworkInfoRecord `json:"network_info,omitempty"`
	Logs        *LogRecord         `json:"logs,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}
