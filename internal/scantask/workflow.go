package scantask

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/HerbHall/scanfleet/internal/auth"
	"github.com/HerbHall/scanfleet/pkg/models"
)

// Summary carries the resource counts the workflow progress is derived
// from, as reported by the registry backend.
type Summary struct {
	Assets     int `json:"assets"`
	Groups     int `json:"groups"`
	Operations int `json:"operations"`
}

// SummarySource fetches the registry's resource summary.
type SummarySource interface {
	Summary(ctx context.Context) (Summary, error)
}

// httpSummarySource reads the summary from the registry backend. Requests
// carry the same bearer token as every other registry call.
type httpSummarySource struct {
	http    *http.Client
	baseURL string
	token   auth.TokenSource
}

// NewSummarySource creates the production SummarySource for the registry at
// baseURL. token may be nil when the registry is unauthenticated.
func NewSummarySource(hc *http.Client, baseURL string, token auth.TokenSource) SummarySource {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &httpSummarySource{http: hc, baseURL: baseURL, token: token}
}

func (s *httpSummarySource) Summary(ctx context.Context) (Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/summary", nil)
	if err != nil {
		return Summary{}, fmt.Errorf("build summary request: %w", err)
	}
	if s.token != nil {
		if t := s.token.Token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch registry summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("registry summary returned status %d", resp.StatusCode)
	}

	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return Summary{}, fmt.Errorf("decode registry summary: %w", err)
	}
	return summary, nil
}

// Workflow derives onboarding progress from resource counts on every call.
// Nothing is stored; each boolean is simply "at least one exists".
type Workflow struct {
	service *Service
	summary SummarySource
}

// NewWorkflow creates the workflow progress reader. summary may be nil, in
// which case only the discovery step can be reported complete.
func NewWorkflow(service *Service, summary SummarySource) *Workflow {
	return &Workflow{service: service, summary: summary}
}

// Progress computes the current workflow progress. A summary fetch failure
// fails the whole call; stale booleans would be worse than an error.
func (w *Workflow) Progress(ctx context.Context) (models.WorkflowProgress, error) {
	completed, err := w.service.CompletedCount(ctx)
	if err != nil {
		return models.WorkflowProgress{}, err
	}

	progress := models.WorkflowProgress{Discovery: completed > 0}
	if w.summary == nil {
		return progress, nil
	}

	summary, err := w.summary.Summary(ctx)
	if err != nil {
		return models.WorkflowProgress{}, err
	}
	progress.Assets = summary.Assets > 0
	progress.Groups = summary.Groups > 0
	progress.Operations = summary.Operations > 0
	return progress, nil
}
