// Package catalog is the HTTP connector to the external catalog
// service: GET /v1/sources returns the list of image sources the
// regulator rate-limits against. The catalog, its database, and the
// image pipeline it fronts live outside this module; this package only
// consumes its documented interface.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Source is one catalog entry.
type Source struct {
	SourceName  string `json:"source_name"`
	ImageCount  int64  `json:"image_count"`
	DisplayName string `json:"display_name"`
	SourceURL   string `json:"source_url"`
}

// ErrCatalogUnavailable is returned for any non-200 response or
// transport failure; the regulator treats it as "skip this tick".
var ErrCatalogUnavailable = fmt.Errorf("catalog: unavailable")

// Client fetches the source list from the upstream catalog over a
// dedicated transport with idle-connection tuning and a per-call
// context timeout.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// New returns a Client pointed at baseURL with the given per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{Transport: transport},
	}
}

// FetchSources performs GET {baseURL}/v1/sources. Any non-200 response,
// transport error, or malformed JSON payload returns
// ErrCatalogUnavailable wrapped with detail; the caller never receives
// a partially-parsed source list.
func (c *Client) FetchSources(ctx context.Context) ([]Source, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sources", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrCatalogUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var sources []Source
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ErrCatalogUnavailable, err)
	}
	return sources, nil
}
