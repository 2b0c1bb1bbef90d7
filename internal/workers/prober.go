// Package workers runs the background goroutines that keep telemetry
// fresh: a health prober and a latency aggregator.
package workers

import (
	"context"
	"log"
	"time"

	"github.com/kestrel-proxy/dispatchcore/internal/backendclient"
	"github.com/kestrel-proxy/dispatchcore/internal/telemetry"
)

// ProbeInterval is the health-check cadence.
const ProbeInterval = 10 * time.Second

// Prober polls every backend's /status endpoint on a fixed cadence and
// records the result as a healthy flag. It never deregisters a backend: an
// unhealthy backend stays registered and is only skipped at selection
// time.
type Prober struct {
	Store   telemetry.Store
	Clients map[string]*backendclient.Client
}

func NewProber(store telemetry.Store, clients map[string]*backendclient.Client) *Prober {
	return &Prober{Store: store, Clients: clients}
}

// Run blocks, probing every backend once per ProbeInterval, until ctx is
// canceled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one probe pass. Split out from Run so tests can drive it
// deterministically without waiting on a real ticker.
func (p *Prober) tick(ctx context.Context) {
	var failing []string
	for url, client := range p.Clients {
		ok := client.Probe(ctx)
		if err := p.Store.SetHealthy(ctx, url, ok); err != nil {
			log.Printf("[prober] set_healthy failed for %s: %v", url, err)
		}
		if !ok {
			failing = append(failing, url)
		}
	}
	if len(failing) > 0 {
		log.Printf("[prober] failing servers: %v", failing)
	}
}
