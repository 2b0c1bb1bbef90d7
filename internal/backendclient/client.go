// Package backendclient wraps one backend's URL and a pooled HTTP client,
// performing request forwarding and health probing.
package backendclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kestrel-proxy/dispatchcore/internal/apierror"
)

// Client owns one backend origin and a long-lived, connection-pooled HTTP
// client. It is safe for concurrent use.
type Client struct {
	URL        string
	httpClient *http.Client
}

// New builds a Client for one backend. The shared transport keeps
// connections warm across requests instead of dialing fresh per call.
func New(backendURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		URL: backendURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
	}
}

// ApiResponse captures a fully-buffered upstream response: status and body
// bytes. Streaming pass-through is not supported.
type ApiResponse struct {
	StatusCode int
	Body       []byte
}

// Forward builds the upstream URL by joining the backend's URL with route
// (path+query, leading '/' already stripped by the caller), attaches body
// verbatim if present, and returns the full captured response. Only GET and
// POST are supported; anything else fails without contacting the backend.
func (c *Client) Forward(ctx context.Context, method, route string, body []byte) (*ApiResponse, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return nil, apierror.New(apierror.MethodNotAllowed, "method "+method+" not allowed")
	}

	upstream, err := joinURL(c.URL, route)
	if err != nil {
		return nil, apierror.Wrap(apierror.InvalidUrl, "join backend url", err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, upstream, reqBody)
	if err != nil {
		return nil, apierror.Wrap(apierror.InvalidUrl, "build upstream request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierror.Wrap(apierror.Other, "upstream request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.Wrap(apierror.InvalidResponse, "read upstream body", err)
	}

	return &ApiResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Probe sends GET {url}/status and reports whether the response was 2xx.
// It must never update telemetry itself -- that's the caller's job.
func (c *Client) Probe(ctx context.Context) bool {
	upstream, err := joinURL(c.URL, "status")
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// joinURL resolves route against base: base typically ends with '/', route
// never starts with one.
func joinURL(base, route string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	route = strings.TrimPrefix(route, "/")
	ref, err := url.Parse(route)
	if err != nil {
		return "", fmt.Errorf("invalid route %q: %w", route, err)
	}
	return parsed.ResolveReference(ref).String(), nil
}
