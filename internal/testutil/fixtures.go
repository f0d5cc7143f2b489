package testutil

import (
	"github.com/HerbHall/scanfleet/pkg/models"
)

// NewScanner returns a satellite Scanner with sensible defaults, suitable
// for test fixtures. Override individual fields via options.
func NewScanner(opts ...func(*models.Scanner)) models.Scanner {
	s := models.Scanner{
		ID:       models.SatelliteIDPrefix + "abc123",
		Name:     "Test Scanner",
		URL:      "http://scanner.example.test:9402",
		Subnets:  []string{"192.168.10.0/24"},
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.ResolveKind()
	return s
}

// NewDefaultScanner returns the implicit default scanner fixture.
func NewDefaultScanner(opts ...func(*models.Scanner)) models.Scanner {
	s := models.Scanner{
		Name:      "Default Scanner",
		Subnets:   []string{"10.0.0.0/16"},
		IsActive:  true,
		IsDefault: true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.ResolveKind()
	return s
}

// WithID sets the scanner id.
func WithID(id string) func(*models.Scanner) {
	return func(s *models.Scanner) { s.ID = id }
}

// WithName sets the scanner name.
func WithName(name string) func(*models.Scanner) {
	return func(s *models.Scanner) { s.Name = name }
}

// WithURL sets the scanner agent base URL.
func WithURL(url string) func(*models.Scanner) {
	return func(s *models.Scanner) { s.URL = url }
}

// WithSubnets sets the scanner's configured subnets.
func WithSubnets(subnets ...string) func(*models.Scanner) {
	return func(s *models.Scanner) { s.Subnets = subnets }
}

// WithActive sets the scanner's active flag.
func WithActive(active bool) func(*models.Scanner) {
	return func(s *models.Scanner) { s.IsActive = active }
}
