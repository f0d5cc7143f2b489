package models

// ScannerKind distinguishes the implicit default scanner from registered
// satellite scanners. The kind is resolved once, when a registry record is
// decoded, so probe behavior for the default scanner is declared in one
// place instead of id checks scattered across probes.
type ScannerKind string

const (
	// ScannerKindSatellite is a remote scan agent registered with the
	// scanner registry under its own id.
	ScannerKindSatellite ScannerKind = "satellite"

	// ScannerKindDefault is the always-present scanner handling all address
	// space not delegated to a satellite. It has no independent process and
	// no health-check capability.
	ScannerKindDefault ScannerKind = "default"
)

// SatelliteIDPrefix is the id namespace used by satellite scanner records.
// Ids outside this namespace are probed through the generic scanner endpoint.
const SatelliteIDPrefix = "satellite_"

// Scanner identifies one member of the scanner fleet as reported by the
// registry. ID may be empty: the registry reports the implicit default
// scanner without one, and a satellite may briefly appear without an id
// before enrollment completes.
type Scanner struct {
	ID        string      `json:"id,omitempty"`
	Name      string      `json:"name"`
	URL       string      `json:"url,omitempty"`
	Subnets   []string    `json:"subnets,omitempty"`
	IsActive  bool        `json:"is_active"`
	IsDefault bool        `json:"is_default"`
	Kind      ScannerKind `json:"kind"`
}

// EffectiveKey returns the identity every probe result is keyed by: the
// registry id when present, otherwise the scanner name. A scanner gaining a
// real id across polls therefore becomes a new entity; the fleet snapshot is
// responsible for pruning records orphaned by the old key.
func (s Scanner) EffectiveKey() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Name
}

// ResolveKind tags the scanner based on its registry record. Records with no
// id are the implicit default scanner regardless of the is_default flag,
// which older registry versions omit.
func (s *Scanner) ResolveKind() {
	if s.ID == "" || s.IsDefault {
		s.Kind = ScannerKindDefault
		return
	}
	s.Kind = ScannerKindSatellite
}
