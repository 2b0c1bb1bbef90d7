// Package backendpool holds the static Backend entity and the
// bootstrap-time parser for the available_servers configuration string.
package backendpool

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Backend is the identity and static configuration of one origin server.
// url is the primary key in the telemetry store; weight is immutable for
// the backend's lifetime.
type Backend struct {
	URL    string `json:"url"`
	Weight int    `json:"weight"`
}

// String renders the backend in its configuration form, "url$weight".
func (b Backend) String() string {
	return b.URL + "$" + strconv.Itoa(b.Weight)
}

// Parse reads a configuration string of the form "url$weight[,url$weight...]"
// and returns the registered backends. A malformed entry, a weight below 1,
// or a duplicate URL is a bootstrap-fatal error.
func Parse(config string) ([]Backend, error) {
	parts := strings.Split(config, ",")
	backends := make([]Backend, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		rawURL, rawWeight, ok := strings.Cut(part, "$")
		if !ok {
			return nil, fmt.Errorf("invalid server entry %q: expected url$weight", part)
		}

		if _, err := url.Parse(rawURL); err != nil {
			return nil, fmt.Errorf("invalid server url %q: %w", rawURL, err)
		}

		weight, err := strconv.Atoi(rawWeight)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %q: %w", rawURL, err)
		}
		if weight < 1 {
			return nil, fmt.Errorf("invalid weight for %q: must be >= 1, got %d", rawURL, weight)
		}

		if _, dup := seen[rawURL]; dup {
			return nil, fmt.Errorf("duplicate backend url %q", rawURL)
		}
		seen[rawURL] = struct{}{}

		backends = append(backends, Backend{URL: rawURL, Weight: weight})
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}

	return backends, nil
}
