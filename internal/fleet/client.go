package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/HerbHall/scanfleet/internal/auth"
)

// apiClient is a thin authenticated HTTP+JSON helper shared by the registry
// client and the probes. Timeout behavior is whatever the injected
// http.Client does; the fleet module deliberately adds no per-call timeout
// or retry of its own.
type apiClient struct {
	http  *http.Client
	token auth.TokenSource
}

func newAPIClient(hc *http.Client, token auth.TokenSource) *apiClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &apiClient{http: hc, token: token}
}

// getJSON issues an authenticated GET and decodes the response body into out.
// Non-2xx responses are errors carrying the status code.
func (c *apiClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", url, err)
	}
	return c.do(req, out)
}

// postJSON issues an authenticated POST with an optional JSON body and
// decodes the response into out when out is non-nil.
func (c *apiClient) postJSON(ctx context.Context, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	if c.token != nil {
		if t := c.token.Token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL, err)
	}
	return nil
}

// statusError is a non-2xx HTTP response.
type statusError struct {
	Code int
	URL  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// httpStatus extracts the status code from err, or 0 when err is not a
// statusError.
func httpStatus(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
