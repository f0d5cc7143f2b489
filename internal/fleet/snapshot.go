package fleet

import (
	"sync"
	"time"

	"github.com/HerbHall/scanfleet/pkg/models"
)

// Snapshot is the in-memory view of the fleet: the last successfully fetched
// scanner list plus the latest health and network record per scanner key.
// A failed registry poll never touches the snapshot, so readers always see
// the last coherent fleet rather than an empty one.
type Snapshot struct {
	mu          sync.RWMutex
	scanners    []models.Scanner
	health      map[string]models.HealthRecord
	network     map[string]models.NetworkInfoRecord
	refreshedAt time.Time
}

// NewSnapshot creates an empty fleet snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		health:  make(map[string]models.HealthRecord),
		network: make(map[string]models.NetworkInfoRecord),
	}
}

// SetScanners replaces the fleet list and prunes records orphaned by keys
// that no longer exist. A scanner that gained a real id is still keyed by
// name in the old records; those survive until the new key has a successful
// record of its own, so the view never goes blank mid-transition.
func (s *Snapshot) SetScanners(scanners []models.Scanner, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanners = append([]models.Scanner(nil), scanners...)
	s.refreshedAt = at

	current := make(map[string]models.Scanner, len(scanners))
	for _, sc := range scanners {
		current[sc.EffectiveKey()] = sc
	}

	for key := range s.health {
		if s.orphaned(key, current) {
			delete(s.health, key)
		}
	}
	for key := range s.network {
		if s.orphaned(key, current) {
			delete(s.network, key)
		}
	}
}

// orphaned reports whether a record key belongs to no current scanner and
// has no successor still warming up. Matching a departed key to its
// successor is best effort: same name or same agent URL.
func (s *Snapshot) orphaned(key string, current map[string]models.Scanner) bool {
	if _, ok := current[key]; ok {
		return false
	}
	for newKey, sc := range current {
		if sc.Name != key && !(sc.URL != "" && sc.URL == key) {
			continue
		}
		// Successor found. Keep the old record until the new key has a
		// successful record of its own; an error-status first probe does
		// not count as warmed up.
		if h, ok := s.health[newKey]; ok && h.Status != models.HealthStatusError {
			return true
		}
		if n, ok := s.network[newKey]; ok && n.Error == "" {
			return true
		}
		return false
	}
	return true
}

// SetHealth commits a health record. Records for keys outside the current
// fleet are dropped: a probe started before a fleet change must not
// resurrect a removed scanner. Returns whether the record was committed and
// whether the status differs from the previous record for that key.
func (s *Snapshot) SetHealth(rec models.HealthRecord) (committed, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownLocked(rec.ScannerKey) {
		return false, false
	}
	prev, had := s.health[rec.ScannerKey]
	s.health[rec.ScannerKey] = rec
	return true, !had || prev.Status != rec.Status
}

// SetNetwork commits a network record under the same late-result rule as
// SetHealth.
func (s *Snapshot) SetNetwork(rec models.NetworkInfoRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownLocked(rec.ScannerKey) {
		return false
	}
	s.network[rec.ScannerKey] = rec
	return true
}

func (s *Snapshot) knownLocked(key string) bool {
	for _, sc := range s.scanners {
		if sc.EffectiveKey() == key {
			return true
		}
	}
	return false
}

// Scanners returns a copy of the current fleet list.
func (s *Snapshot) Scanners() []models.Scanner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Scanner(nil), s.scanners...)
}

// Find looks up a scanner by its effective key.
func (s *Snapshot) Find(key string) (models.Scanner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.scanners {
		if sc.EffectiveKey() == key {
			return sc, true
		}
	}
	return models.Scanner{}, false
}

// Health returns the latest health record for a scanner key.
func (s *Snapshot) Health(key string) (models.HealthRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.health[key]
	return rec, ok
}

// Network returns the latest network record for a scanner key.
func (s *Snapshot) Network(key string) (models.NetworkInfoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.network[key]
	return rec, ok
}

// HealthAll returns a copy of every health record keyed by scanner key.
func (s *Snapshot) HealthAll() map[string]models.HealthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.HealthRecord, len(s.health))
	for k, v := range s.health {
		out[k] = v
	}
	return out
}

// RefreshedAt returns when the scanner list was last successfully fetched.
// The zero time means no poll has succeeded yet.
func (s *Snapshot) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}
