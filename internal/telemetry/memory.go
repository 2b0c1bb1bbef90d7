package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kestrel-proxy/dispatchcore/internal/apierror"
	"github.com/kestrel-proxy/dispatchcore/internal/backendpool"
)

// MemoryStore is the single-instance, in-process alternative to RedisStore.
// It exposes the same logical schema and the same
// atomicity guarantees: in_flight and mean_latency are atomic counters, and
// the sample list lives behind a short-held mutex because it is only
// touched by one producer (the hot path) and one consumer (the aggregator).
type MemoryStore struct {
	backends []backendpool.Backend
	weights  map[string]int64

	loads   map[string]*atomic.Int64
	means   map[string]*atomic.Int64
	healthy map[string]*atomic.Bool

	samplesMu sync.Mutex
	samples   map[string][]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		weights: make(map[string]int64),
		loads:   make(map[string]*atomic.Int64),
		means:   make(map[string]*atomic.Int64),
		healthy: make(map[string]*atomic.Bool),
		samples: make(map[string][]int64),
	}
}

func (s *MemoryStore) Register(_ context.Context, backends []backendpool.Backend) error {
	s.backends = append(s.backends, backends...)
	for _, b := range backends {
		s.weights[b.URL] = int64(b.Weight)
		s.loads[b.URL] = &atomic.Int64{}
		s.means[b.URL] = &atomic.Int64{}
		h := &atomic.Bool{}
		h.Store(true)
		s.healthy[b.URL] = h
	}
	return nil
}

func (s *MemoryStore) ListBackends(_ context.Context) ([]backendpool.Backend, error) {
	out := make([]backendpool.Backend, len(s.backends))
	copy(out, s.backends)
	return out, nil
}

func (s *MemoryStore) IncLoad(_ context.Context, url string, delta int64) error {
	counter, ok := s.loads[url]
	if !ok {
		return apierror.New(apierror.TelemetryStoreError, "unknown backend "+url)
	}
	counter.Add(delta)
	return nil
}

func (s *MemoryStore) LoadAll(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(s.loads))
	for url, counter := range s.loads {
		out[url] = counter.Load()
	}
	return out, nil
}

func (s *MemoryStore) AppendSample(_ context.Context, url string, ms int64) error {
	s.samplesMu.Lock()
	defer s.samplesMu.Unlock()
	s.samples[url] = append(s.samples[url], ms)
	return nil
}

func (s *MemoryStore) Samples(_ context.Context, url string) ([]int64, error) {
	s.samplesMu.Lock()
	defer s.samplesMu.Unlock()
	out := make([]int64, len(s.samples[url]))
	copy(out, s.samples[url])
	return out, nil
}

func (s *MemoryStore) SamplesAll(_ context.Context, urls []string) (map[string][]int64, error) {
	s.samplesMu.Lock()
	defer s.samplesMu.Unlock()
	out := make(map[string][]int64, len(urls))
	for _, url := range urls {
		cp := make([]int64, len(s.samples[url]))
		copy(cp, s.samples[url])
		out[url] = cp
	}
	return out, nil
}

func (s *MemoryStore) TrimSamples(_ context.Context, url string, max int) error {
	if max <= 0 {
		max = MaxSamples
	}
	s.samplesMu.Lock()
	defer s.samplesMu.Unlock()
	if len(s.samples[url]) > max {
		s.samples[url] = s.samples[url][len(s.samples[url])-max:]
	}
	return nil
}

func (s *MemoryStore) PutMean(_ context.Context, url string, ms int64) error {
	counter, ok := s.means[url]
	if !ok {
		return apierror.New(apierror.TelemetryStoreError, "unknown backend "+url)
	}
	counter.Store(ms)
	return nil
}

func (s *MemoryStore) MeanAll(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(s.means))
	for url, counter := range s.means {
		out[url] = counter.Load()
	}
	return out, nil
}

func (s *MemoryStore) WeightsAll(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(s.weights))
	for url, w := range s.weights {
		out[url] = w
	}
	return out, nil
}

func (s *MemoryStore) SetHealthy(_ context.Context, url string, ok bool) error {
	flag, exists := s.healthy[url]
	if !exists {
		return apierror.New(apierror.TelemetryStoreError, "unknown backend "+url)
	}
	flag.Store(ok)
	return nil
}

func (s *MemoryStore) HealthyAll(_ context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(s.healthy))
	for url, flag := range s.healthy {
		out[url] = flag.Load()
	}
	return out, nil
}
