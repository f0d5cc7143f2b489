// Package scantask manages discovery scan tasks. The service enforces the
// system-wide rule that at most one scan runs at a time; the guard gives
// callers a cheap local check so most duplicate starts are rejected without
// touching the database.
package scantask

import "errors"

var (
	// ErrScanAlreadyRunning is returned when a scan start is rejected
	// because another scan is running. The guard and the service both
	// return it, so callers cannot tell a local rejection from a database
	// conflict, and they should not need to.
	ErrScanAlreadyRunning = errors.New("a scan is already running")

	// ErrNotFound is returned when the referenced scan task does not exist.
	ErrNotFound = errors.New("scan task not found")

	// ErrNotRunning is returned when a progress update or finish targets a
	// task that is no longer running.
	ErrNotRunning = errors.New("scan task is not running")

	// ErrConfirmationRequired is returned by cancel when the caller has not
	// explicitly confirmed the cancellation.
	ErrConfirmationRequired = errors.New("cancellation must be confirmed")
)
