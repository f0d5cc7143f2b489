package fleet

import "errors"

// Sentinel errors for fleet operations. Probe failures are never surfaced
// as errors; they are absorbed into the corresponding record's status
// field so one bad scanner can never interrupt the rest of the fleet.
var (
	// ErrRegistryUnavailable means listing scanners failed this cycle.
	// Callers keep the last good snapshot instead of clearing state.
	ErrRegistryUnavailable = errors.New("scanner registry unavailable")

	// ErrScannerNotFound means no scanner with the given key exists in the
	// current fleet snapshot.
	ErrScannerNotFound = errors.New("scanner not found")

	// ErrActionDenied means a user-initiated action was attempted against a
	// scanner that cannot perform it (no agent process) or the backend
	// refused it for this user.
	ErrActionDenied = errors.New("action not permitted for this scanner")
)
