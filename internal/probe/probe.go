// Package probe implements the connectivity check against the model
// service, decoupled from the processing path and its timeout.
package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

type Probe struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL string, client *http.Client) *Probe {
	if client == nil {
		client = &http.Client{}
	}
	return &Probe{
		BaseURL:    baseURL,
		HTTPClient: client,
		Timeout:    3 * time.Second,
	}
}

// CheckAvailability issues a GET against the version endpoint. Any
// failure, including timeout, yields false; it never returns an error.
func (p *Probe) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url("/api/version"), nil)
	if err != nil {
		return false
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels fetches the model catalog. On any failure it returns an empty
// slice; an absent catalog is a normal state, not a fault.
func (p *Probe) ListModels(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url("/api/tags"), nil)
	if err != nil {
		return nil
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

func (p *Probe) url(path string) string {
	return strings.TrimRight(p.BaseURL, "/") + path
}

func (p *Probe) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 3 * time.Second
}
