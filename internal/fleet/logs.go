package fleet

import (
	"context"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// LogProber returns a log-availability notice for one scanner. Remote log
// streaming is intentionally not implemented; the notice wording is the
// only thing that varies between scanner kinds.
type LogProber interface {
	ProbeLogs(ctx context.Context, scanner models.Scanner) models.LogRecord
}

// staticLogProbe implements LogProber with fixed wording per scanner kind.
type staticLogProbe struct{}

// NewLogProbe creates the production LogProber.
func NewLogProbe() LogProber {
	return staticLogProbe{}
}

func (staticLogProbe) ProbeLogs(_ context.Context, scanner models.Scanner) models.LogRecord {
	key := scanner.EffectiveKey()

	if scanner.Kind == models.ScannerKindDefault {
		return models.LogRecord{
			ScannerKey: key,
			Message:    "Logs are not collected for the default scanner",
			Note:       "The default scanner runs inside the platform; see the platform service logs instead.",
		}
	}

	return models.LogRecord{
		ScannerKey: key,
		Message:    "Remote log streaming is not available for satellite scanners",
		Note:       "Inspect logs on the scanner host directly, or check its last heartbeat in the registry.",
	}
}
