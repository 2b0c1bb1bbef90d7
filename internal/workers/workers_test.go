package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kestrel-proxy/dispatchcore/internal/backendclient"
	"github.com/kestrel-proxy/dispatchcore/internal/backendpool"
	"github.com/kestrel-proxy/dispatchcore/internal/telemetry"
)

func TestProber_TickMarksUnhealthyWithoutDeregistering(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	store := telemetry.NewMemoryStore()
	backends := []backendpool.Backend{{URL: up.URL + "/", Weight: 1}, {URL: down.URL + "/", Weight: 1}}
	if err := store.Register(context.Background(), backends); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	clients := map[string]*backendclient.Client{
		up.URL + "/":   backendclient.New(up.URL + "/"),
		down.URL + "/": backendclient.New(down.URL + "/"),
	}
	p := NewProber(store, clients)
	p.tick(context.Background())

	healthy, err := store.HealthyAll(context.Background())
	if err != nil {
		t.Fatalf("HealthyAll() error = %v", err)
	}
	if !healthy[up.URL+"/"] {
		t.Errorf("healthy backend marked unhealthy")
	}
	if healthy[down.URL+"/"] {
		t.Errorf("unhealthy backend marked healthy")
	}

	all, err := store.ListBackends(context.Background())
	if err != nil {
		t.Fatalf("ListBackends() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListBackends() = %d backends, want 2 (prober must never deregister)", len(all))
	}
}

func TestAggregator_TickComputesIntegerMean(t *testing.T) {
	store := telemetry.NewMemoryStore()
	const url = "https://a.example.com/"
	if err := store.Register(context.Background(), []backendpool.Backend{{URL: url, Weight: 1}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	for _, ms := range []int64{10, 20, 21} {
		if err := store.AppendSample(context.Background(), url, ms); err != nil {
			t.Fatalf("AppendSample() error = %v", err)
		}
	}

	a := NewAggregator(store, []string{url})
	a.tick(context.Background())

	means, err := store.MeanAll(context.Background())
	if err != nil {
		t.Fatalf("MeanAll() error = %v", err)
	}
	if means[url] != 17 { // (10+20+21)/3 = 17
		t.Errorf("mean = %d, want 17", means[url])
	}
}

func TestAggregator_TickTrimsSamplesToMax(t *testing.T) {
	store := telemetry.NewMemoryStore()
	const url = "https://a.example.com/"
	if err := store.Register(context.Background(), []backendpool.Backend{{URL: url, Weight: 1}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	for i := 0; i < telemetry.MaxSamples+10; i++ {
		if err := store.AppendSample(context.Background(), url, int64(i)); err != nil {
			t.Fatalf("AppendSample() error = %v", err)
		}
	}

	a := NewAggregator(store, []string{url})
	a.tick(context.Background())

	samples, err := store.Samples(context.Background(), url)
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != telemetry.MaxSamples {
		t.Errorf("len(samples) = %d, want %d", len(samples), telemetry.MaxSamples)
	}
}

// Running tick twice with no new samples leaves the mean unchanged.
func TestAggregator_TickIsIdempotentWithoutNewSamples(t *testing.T) {
	store := telemetry.NewMemoryStore()
	const url = "https://a.example.com/"
	if err := store.Register(context.Background(), []backendpool.Backend{{URL: url, Weight: 1}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := store.AppendSample(context.Background(), url, 50); err != nil {
		t.Fatalf("AppendSample() error = %v", err)
	}

	a := NewAggregator(store, []string{url})
	a.tick(context.Background())
	first, _ := store.MeanAll(context.Background())

	a.tick(context.Background())
	second, _ := store.MeanAll(context.Background())

	if first[url] != second[url] {
		t.Errorf("mean changed across idempotent ticks: %d then %d", first[url], second[url])
	}
}
