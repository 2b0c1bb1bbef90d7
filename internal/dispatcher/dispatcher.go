// Package dispatcher implements the per-request pipeline: body capture,
// policy invocation, forwarding, and the telemetry bookkeeping around
// success and failure.
package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kestrel-proxy/dispatchcore/internal/apierror"
	"github.com/kestrel-proxy/dispatchcore/internal/backendclient"
	"github.com/kestrel-proxy/dispatchcore/internal/policy"
	"github.com/kestrel-proxy/dispatchcore/internal/telemetry"
)

// MaxBodyBytes bounds how much of a request body the dispatcher will
// buffer; larger bodies are rejected.
const MaxBodyBytes = 10 << 20 // 10 MiB

// LocationExtractor pulls the location tag LocationBased needs out of a
// request -- e.g. a header or query parameter naming an ISO country code.
type LocationExtractor func(*http.Request) string

// DefaultLocationExtractor reads the X-Client-Location header.
func DefaultLocationExtractor(r *http.Request) string {
	return r.Header.Get("X-Client-Location")
}

// Dispatcher is the request-dispatch core's HTTP entry point. One instance
// is shared across every inbound request; it holds no per-request state.
type Dispatcher struct {
	Store  telemetry.Store
	Policy policy.Policy
	// NeedsMeanLatency lets the dispatcher skip a telemetry read that the
	// active policy will never consult.
	NeedsMeanLatency bool
	Clients          map[string]*backendclient.Client
	LocationTag      LocationExtractor
}

// New builds a Dispatcher for a fixed set of backend clients.
func New(store telemetry.Store, p policy.Policy, needsMeanLatency bool, clients map[string]*backendclient.Client) *Dispatcher {
	return &Dispatcher{
		Store:            store,
		Policy:           p,
		NeedsMeanLatency: needsMeanLatency,
		Clients:          clients,
		LocationTag:      DefaultLocationExtractor,
	}
}

// ServeHTTP is mounted as the catch-all route. The /status self-route
// bypass is a routing decision, not dispatch logic: cmd/proxy mounts a
// dedicated /status handler ahead of this one, so the dispatcher is never
// invoked for that path at all.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Cheap validation ahead of any telemetry read or reservation: a
	// disallowed method must leave no trace in telemetry, neither a load
	// increment nor a sample.
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, apierror.New(apierror.MethodNotAllowed, "method "+r.Method+" not allowed"))
		return
	}

	ctx := r.Context()

	// Body capture.
	body, err := captureBody(r)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.Other, "read request body", err))
		return
	}

	// Policy inputs.
	snapshot, err := d.readSnapshot(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Selection, then the load reservation: the increment lands before the
	// upstream call so concurrent dispatchers see it.
	chosen, err := d.Policy(snapshot)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := d.Store.IncLoad(ctx, chosen, 1); err != nil {
		writeError(w, err)
		return
	}

	// Forwarding.
	client, ok := d.Clients[chosen]
	if !ok {
		d.decrementLoad(ctx, chosen)
		writeError(w, apierror.New(apierror.InvalidUrl, "no client configured for "+chosen))
		return
	}

	route := strings.TrimPrefix(r.URL.RequestURI(), "/")
	start := time.Now()
	resp, fwdErr := client.Forward(ctx, r.Method, route, body)
	elapsedMs := time.Since(start).Milliseconds()

	// Decrement on both success and failure so server_load stays a live
	// concurrency gauge instead of a cumulative dispatch counter.
	d.decrementLoad(ctx, chosen)

	if fwdErr != nil {
		writeError(w, fwdErr)
		return
	}

	// Observation.
	if err := d.Store.AppendSample(ctx, chosen, elapsedMs); err != nil {
		log.Printf("[dispatcher] append_sample failed for %s: %v", chosen, err)
	}

	// Relay the response unchanged.
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func (d *Dispatcher) decrementLoad(ctx context.Context, url string) {
	if err := d.Store.IncLoad(ctx, url, -1); err != nil {
		log.Printf("[dispatcher] load decrement failed for %s: %v", url, err)
	}
}

func (d *Dispatcher) readSnapshot(ctx context.Context, r *http.Request) (policy.Snapshot, error) {
	load, err := d.Store.LoadAll(ctx)
	if err != nil {
		return policy.Snapshot{}, apierror.Wrap(apierror.TelemetryStoreError, "read load_all", err)
	}
	weights, err := d.Store.WeightsAll(ctx)
	if err != nil {
		return policy.Snapshot{}, apierror.Wrap(apierror.TelemetryStoreError, "read weights_all", err)
	}

	var mean map[string]int64
	if d.NeedsMeanLatency {
		mean, err = d.Store.MeanAll(ctx)
		if err != nil {
			return policy.Snapshot{}, apierror.Wrap(apierror.TelemetryStoreError, "read mean_all", err)
		}
	}

	healthy, err := d.Store.HealthyAll(ctx)
	if err != nil {
		return policy.Snapshot{}, apierror.Wrap(apierror.TelemetryStoreError, "read healthy flags", err)
	}

	candidates := make([]string, 0, len(d.Clients))
	for url := range d.Clients {
		candidates = append(candidates, url)
	}

	return policy.Snapshot{
		Load:        load,
		Weight:      weights,
		MeanLatency: mean,
		Healthy:     healthy,
		Candidates:  candidates,
		LocationTag: d.LocationTag(r),
	}, nil
}

// captureBody drains the request body into a bounded buffer. Parsing as
// JSON is attempted only to log when the body is not JSON; the parsed value
// is discarded, and the raw bytes are always what gets forwarded.
func captureBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	limited := io.LimitReader(r.Body, MaxBodyBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > MaxBodyBytes {
		return nil, apierror.New(apierror.Other, "request body exceeds maximum size")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("[dispatcher] body is not JSON, forwarding raw bytes unchanged")
	}
	return raw, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := apierror.StatusCode(err)
	http.Error(w, err.Error(), status)
}
