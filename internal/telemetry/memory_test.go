package telemetry

import (
	"context"
	"testing"

	"github.com/kestrel-proxy/dispatchcore/internal/backendpool"
)

func newTestStore(t *testing.T) (*MemoryStore, context.Context) {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Register(ctx, []backendpool.Backend{{URL: "https://a/", Weight: 1}, {URL: "https://b/", Weight: 3}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return s, ctx
}

func TestMemoryStore_IncLoadIsCumulative(t *testing.T) {
	s, ctx := newTestStore(t)

	if err := s.IncLoad(ctx, "https://a/", 1); err != nil {
		t.Fatalf("IncLoad() error = %v", err)
	}
	if err := s.IncLoad(ctx, "https://a/", 1); err != nil {
		t.Fatalf("IncLoad() error = %v", err)
	}
	if err := s.IncLoad(ctx, "https://a/", -1); err != nil {
		t.Fatalf("IncLoad() error = %v", err)
	}

	loads, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if loads["https://a/"] != 1 {
		t.Errorf("LoadAll()[a] = %d, want 1", loads["https://a/"])
	}
}

func TestMemoryStore_SamplesBoundedAfterTrim(t *testing.T) {
	s, ctx := newTestStore(t)

	for i := int64(0); i < 25; i++ {
		if err := s.AppendSample(ctx, "https://a/", i); err != nil {
			t.Fatalf("AppendSample() error = %v", err)
		}
	}
	if err := s.TrimSamples(ctx, "https://a/", MaxSamples); err != nil {
		t.Fatalf("TrimSamples() error = %v", err)
	}

	samples, err := s.Samples(ctx, "https://a/")
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != MaxSamples {
		t.Fatalf("len(samples) = %d, want %d", len(samples), MaxSamples)
	}
	// the oldest five entries (0..4) should have been evicted, keeping 5..24
	if samples[0] != 5 || samples[len(samples)-1] != 24 {
		t.Errorf("Samples() = %v, want the 20 most recent of 0..24", samples)
	}
}

func TestMemoryStore_AggregatorIdempotence(t *testing.T) {
	s, ctx := newTestStore(t)
	for _, v := range []int64{10, 20, 30} {
		if err := s.AppendSample(ctx, "https://a/", v); err != nil {
			t.Fatalf("AppendSample() error = %v", err)
		}
	}

	mean := func() int64 {
		samples, err := s.Samples(ctx, "https://a/")
		if err != nil {
			t.Fatalf("Samples() error = %v", err)
		}
		var sum int64
		for _, v := range samples {
			sum += v
		}
		return sum / int64(len(samples))
	}

	if err := s.PutMean(ctx, "https://a/", mean()); err != nil {
		t.Fatalf("PutMean() error = %v", err)
	}
	first, err := s.MeanAll(ctx)
	if err != nil {
		t.Fatalf("MeanAll() error = %v", err)
	}

	// running the aggregation again with no new samples must be a no-op
	if err := s.PutMean(ctx, "https://a/", mean()); err != nil {
		t.Fatalf("PutMean() error = %v", err)
	}
	second, err := s.MeanAll(ctx)
	if err != nil {
		t.Fatalf("MeanAll() error = %v", err)
	}

	if first["https://a/"] != second["https://a/"] {
		t.Errorf("mean changed across idempotent runs: %d != %d", first["https://a/"], second["https://a/"])
	}
	if first["https://a/"] != 20 {
		t.Errorf("mean = %d, want 20", first["https://a/"])
	}
}

func TestMemoryStore_WeightsAllOmitsUnregistered(t *testing.T) {
	s, ctx := newTestStore(t)
	weights, err := s.WeightsAll(ctx)
	if err != nil {
		t.Fatalf("WeightsAll() error = %v", err)
	}
	// a backend registered without an explicit weight entry (simulated by
	// reading a URL never passed to Register) must be handled by callers
	// defaulting to 1 -- WeightsAll itself only reports what's registered.
	if _, ok := weights["https://nonexistent/"]; ok {
		t.Errorf("WeightsAll() should not report unregistered backends")
	}
}
