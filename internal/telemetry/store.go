// Package telemetry wraps the shared, process-external key/value service
// that the dispatch core reads and writes on the hot path. It owns the
// schema: server_url, server_load, server_weights, server_latency,
// server_healthy, and one rolling-sample list per backend URL.
package telemetry

import (
	"context"

	"github.com/kestrel-proxy/dispatchcore/internal/backendpool"
)

// MaxSamples bounds the rolling latency-sample list per backend.
const MaxSamples = 20

// Store is the typed contract every telemetry backend (Redis-backed or
// in-process) must satisfy. None of these operations retry locally; a
// transport or serialization failure is returned to the caller as-is.
type Store interface {
	// Register appends each backend's identity to server_url and sets its
	// static weight in server_weights. Not deduplicating: callers must only
	// call it once, at bootstrap, against a clean store.
	Register(ctx context.Context, backends []backendpool.Backend) error

	// ListBackends parses every entry of server_url. A malformed entry is a
	// fatal error surfaced to the caller.
	ListBackends(ctx context.Context) ([]backendpool.Backend, error)

	// IncLoad performs a server-side atomic increment of a backend's
	// in-flight counter. delta may be negative.
	IncLoad(ctx context.Context, url string, delta int64) error

	// LoadAll is a snapshot read of every backend's in-flight counter.
	LoadAll(ctx context.Context) (map[string]int64, error)

	// AppendSample right-pushes a latency observation onto a backend's
	// rolling sample list. The hot path never trims; see TrimSamples.
	AppendSample(ctx context.Context, url string, ms int64) error

	// Samples reads the whole sample list for one backend.
	Samples(ctx context.Context, url string) ([]int64, error)

	// SamplesAll reads every backend's sample list in one pass.
	SamplesAll(ctx context.Context, urls []string) (map[string][]int64, error)

	// TrimSamples bounds a backend's sample list to max entries (MaxSamples
	// when max <= 0), keeping the most recent. Called only by the latency
	// aggregator.
	TrimSamples(ctx context.Context, url string, max int) error

	// PutMean writes a backend's aggregated mean latency.
	PutMean(ctx context.Context, url string, ms int64) error

	// MeanAll is a snapshot read of every backend's last-aggregated mean.
	MeanAll(ctx context.Context) (map[string]int64, error)

	// WeightsAll is a snapshot read of every backend's static weight.
	WeightsAll(ctx context.Context) (map[string]int64, error)

	// SetHealthy records the prober's most recent liveness verdict for a
	// backend.
	SetHealthy(ctx context.Context, url string, healthy bool) error

	// HealthyAll is a snapshot read of every backend's health flag. A
	// backend absent from the map has not been probed yet and is treated
	// as healthy.
	HealthyAll(ctx context.Context) (map[string]bool, error)
}
