// Package policy implements the pure selection functions: each one maps a
// telemetry snapshot to a single chosen backend URL, with no side effects
// and no knowledge of the telemetry store, the backend client, or HTTP.
package policy

import (
	"sort"

	"github.com/kestrel-proxy/dispatchcore/internal/apierror"
)

// Snapshot is whatever the dispatcher gathered for one request: up to four
// independently-consistent reads (load, weight, mean latency, health) that
// may reflect different logical times.
// Policies tolerate minor skew between them.
type Snapshot struct {
	Load        map[string]int64
	Weight      map[string]int64
	MeanLatency map[string]int64
	// Healthy, when non-nil, excludes unhealthy backends from selection.
	// A backend absent from Healthy is treated as healthy.
	Healthy map[string]bool
	// Candidates is the universe of backend URLs to score. Policies never
	// invent candidates outside this set, even if Load/Weight/MeanLatency
	// mention other URLs (stale entries are simply ignored).
	Candidates []string
	// LocationTag is the location hint extracted from the request (e.g. an
	// ISO country code), consulted only by LocationBased.
	LocationTag string
}

// Policy is a pure function choosing one backend from a Snapshot, or
// failing with an *apierror.Error of kind NoBackendAvailable when the
// input is empty after filtering.
type Policy func(Snapshot) (string, error)

// Default is used when configuration names an unknown algorithm.
var Default Policy = LeastConnection

// ByName resolves the `algorithm` configuration value to a Policy,
// defaulting to LeastConnection for anything unrecognized.
func ByName(name string) Policy {
	switch name {
	case "least_connection":
		return LeastConnection
	case "weighted_least_connection":
		return WeightedLeastConnection
	case "weighted_response_time":
		return WeightedResponseTime
	case "location_based", "location":
		return LocationBased()
	case "resource_based":
		return ResourceBased
	default:
		return Default
	}
}

// ResourceBased is a reserved algorithm name with no implementation yet.
// Selecting it fails explicitly rather than silently falling back to
// LeastConnection, so a caller that asks for it finds out immediately
// instead of getting a different policy than it configured.
func ResourceBased(Snapshot) (string, error) {
	return "", apierror.New(apierror.Other, "algorithm resource_based is reserved and not implemented")
}

// healthyCandidates filters Candidates down to the ones not explicitly
// marked unhealthy. A nil Healthy map (or a backend missing from it) keeps
// the backend eligible -- an unprobed backend starts out healthy.
func healthyCandidates(s Snapshot) []string {
	if s.Healthy == nil {
		return s.Candidates
	}
	out := make([]string, 0, len(s.Candidates))
	for _, url := range s.Candidates {
		if healthy, known := s.Healthy[url]; !known || healthy {
			out = append(out, url)
		}
	}
	return out
}

// minByScore picks the backend with the lowest score, breaking ties
// lexicographically by URL for determinism.
func minByScore(urls []string, score func(string) int64) (string, error) {
	if len(urls) == 0 {
		return "", apierror.New(apierror.NoBackendAvailable, "no backend available")
	}

	sorted := make([]string, len(urls))
	copy(sorted, urls)
	sort.Strings(sorted)

	best := sorted[0]
	bestScore := score(best)
	for _, url := range sorted[1:] {
		if s := score(url); s < bestScore {
			best = url
			bestScore = s
		}
	}
	return best, nil
}
