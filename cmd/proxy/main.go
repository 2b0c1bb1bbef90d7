// Command proxy boots the request-dispatch core: it wires telemetry,
// policy selection, backend clients, background workers, and the HTTP
// front door together.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/kestrel-proxy/dispatchcore/internal/adminmetrics"
	"github.com/kestrel-proxy/dispatchcore/internal/backendclient"
	"github.com/kestrel-proxy/dispatchcore/internal/backendpool"
	"github.com/kestrel-proxy/dispatchcore/internal/config"
	"github.com/kestrel-proxy/dispatchcore/internal/dispatcher"
	"github.com/kestrel-proxy/dispatchcore/internal/middleware"
	"github.com/kestrel-proxy/dispatchcore/internal/policy"
	"github.com/kestrel-proxy/dispatchcore/internal/telemetry"
	"github.com/kestrel-proxy/dispatchcore/internal/workers"
)

func main() {
	cfg := config.NewFromEnv()
	if err := config.SetupLogging(cfg.TraceLevel); err != nil {
		log.Fatalf("[proxy] logging setup failed: %v", err)
	}

	backends, err := backendpool.Parse(cfg.AvailableServers)
	if err != nil {
		log.Fatalf("[proxy] invalid AVAILABLE_SERVERS: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("[proxy] telemetry store setup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Register(ctx, backends); err != nil {
		log.Fatalf("[proxy] backend registration failed: %v", err)
	}

	clients := make(map[string]*backendclient.Client, len(backends))
	urls := make([]string, len(backends))
	for i, b := range backends {
		clients[b.URL] = backendclient.New(b.URL)
		urls[i] = b.URL
	}

	p := policy.ByName(cfg.Algorithm)
	needsMeanLatency := cfg.Algorithm == "weighted_response_time"
	d := dispatcher.New(store, p, needsMeanLatency, clients)

	prober := workers.NewProber(store, clients)
	aggregator := workers.NewAggregator(store, urls)
	go prober.Run(ctx)
	go aggregator.Run(ctx)

	exporter := adminmetrics.NewExporter(store)
	handler := newRouter(d, exporter)

	log.Printf("[proxy] listening on :%s (algorithm=%s, backends=%d)", cfg.Port, cfg.Algorithm, len(backends))
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[proxy] server failed: %v", err)
	}
}

// newRouter wires the self-health endpoint, the metrics exporter, and the
// dispatcher catch-all behind CORS and tracing middleware. Split out from
// main so routing can be exercised without a live listener.
func newRouter(d *dispatcher.Dispatcher, exporter *adminmetrics.Exporter) http.Handler {
	router := mux.NewRouter()
	router.Path("/metrics").Handler(exporter.Handler())
	router.PathPrefix("/status").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.PathPrefix("/").Handler(d)

	var handler http.Handler = router
	handler = middleware.Trace(handler)
	handler = middleware.CORS(handler)
	return handler
}

func newStore(cfg *config.Config) (telemetry.Store, error) {
	if !cfg.UsesRedis() {
		return telemetry.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return telemetry.NewRedisStore(redis.NewClient(opts)), nil
}
