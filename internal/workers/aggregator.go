package workers

import (
	"context"
	"log"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kestrel-proxy/dispatchcore/internal/telemetry"
)

// AggregateInterval is the latency-aggregation cadence.
const AggregateInterval = 100 * time.Millisecond

// Aggregator recomputes each backend's mean latency from its rolling sample
// list and trims that list back down to telemetry.MaxSamples so it never
// grows without bound.
type Aggregator struct {
	Store       telemetry.Store
	MaxSamples  int
	backendURLs []string
}

func NewAggregator(store telemetry.Store, backendURLs []string) *Aggregator {
	return &Aggregator{Store: store, MaxSamples: telemetry.MaxSamples, backendURLs: backendURLs}
}

// Run blocks, recomputing means every AggregateInterval, until ctx is
// canceled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(AggregateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick recomputes and trims every backend's samples once. Exposed
// separately so tests can call it directly instead of waiting on a ticker.
func (a *Aggregator) tick(ctx context.Context) {
	samples, err := a.Store.SamplesAll(ctx, a.backendURLs)
	if err != nil {
		log.Printf("[aggregator] samples_all failed: %v", err)
		return
	}
	for url, s := range samples {
		if len(s) == 0 {
			continue
		}
		if err := a.Store.PutMean(ctx, url, mean(s)); err != nil {
			log.Printf("[aggregator] put_mean failed for %s: %v", url, err)
		}
		if err := a.Store.TrimSamples(ctx, url, a.MaxSamples); err != nil {
			log.Printf("[aggregator] trim_samples failed for %s: %v", url, err)
		}
	}
}

// mean is the integer mean of the samples, 0 when there are none.
func mean(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	xs := make([]float64, len(samples))
	for i, v := range samples {
		xs[i] = float64(v)
	}
	return int64(stat.Mean(xs, nil))
}
