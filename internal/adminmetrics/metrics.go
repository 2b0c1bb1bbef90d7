// Package adminmetrics exposes the dispatcher's live telemetry as a
// Prometheus registry: gauges are overwritten wholesale on each scrape
// rather than incremented in place, since the source of truth is the
// telemetry store.
package adminmetrics

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-proxy/dispatchcore/internal/telemetry"
)

// Exporter reads telemetry.Store on demand and republishes it as
// Prometheus gauges labeled by backend URL.
type Exporter struct {
	Store telemetry.Store

	registry    *prometheus.Registry
	load        *prometheus.GaugeVec
	meanLatency *prometheus.GaugeVec
	healthy     *prometheus.GaugeVec
}

// NewExporter builds an Exporter with its own private registry so admin
// metrics never collide with a default/global one.
func NewExporter(store telemetry.Store) *Exporter {
	reg := prometheus.NewRegistry()
	e := &Exporter{
		Store:    store,
		registry: reg,
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchcore_backend_load",
			Help: "Reserved in-flight requests per backend.",
		}, []string{"backend"}),
		meanLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchcore_backend_mean_latency_ms",
			Help: "Mean of the most recent latency samples per backend, in milliseconds.",
		}, []string{"backend"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchcore_backend_healthy",
			Help: "1 if the last probe of this backend succeeded, 0 otherwise.",
		}, []string{"backend"}),
	}
	reg.MustRegister(e.load, e.meanLatency, e.healthy)
	return e
}

// Handler returns the /metrics HTTP handler. refresh is called synchronously
// on every scrape so the gauges never go stale between aggregator ticks.
func (e *Exporter) Handler() http.Handler {
	inner := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := e.refresh(r.Context()); err != nil {
			log.Printf("[adminmetrics] refresh failed: %v", err)
		}
		inner.ServeHTTP(w, r)
	})
}

func (e *Exporter) refresh(ctx context.Context) error {
	loads, err := e.Store.LoadAll(ctx)
	if err != nil {
		return err
	}
	means, err := e.Store.MeanAll(ctx)
	if err != nil {
		return err
	}
	healthy, err := e.Store.HealthyAll(ctx)
	if err != nil {
		return err
	}

	for url, v := range loads {
		e.load.WithLabelValues(url).Set(float64(v))
	}
	for url, v := range means {
		e.meanLatency.WithLabelValues(url).Set(float64(v))
	}
	for url, ok := range healthy {
		v := 0.0
		if ok {
			v = 1.0
		}
		e.healthy.WithLabelValues(url).Set(v)
	}
	return nil
}
