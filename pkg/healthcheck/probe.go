package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ProbeCheck is one check as reported by a remote health endpoint
type ProbeCheck struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// ProbeResult is the decoded body of a remote health endpoint
type ProbeResult struct {
	Status     Status       `json:"status"`
	Version    string       `json:"version"`
	Checks     []ProbeCheck `json:"checks"`
	StatusCode int          `json:"-"`
}

// Failed returns the checks that are not healthy
func (p *ProbeResult) Failed() []ProbeCheck {
	var failed []ProbeCheck
	for _, c := range p.Checks {
		if c.Status != StatusHealthy {
			failed = append(failed, c)
		}
	}
	return failed
}

// Probe fetches and decodes the health report served at url
func Probe(ctx context.Context, client *http.Client, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid health url: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ProbeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("unexpected health response (HTTP %d): %w", resp.StatusCode, err)
	}
	result.StatusCode = resp.StatusCode

	return &result, nil
}
