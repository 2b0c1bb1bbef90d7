package telemetry

// Key names are part of the wire contract with the external store and must
// be preserved across releases for operational compatibility.
const (
	keyServerURL     = "server_url"
	keyServerLoad    = "server_load"
	keyServerWeights = "server_weights"
	keyServerLatency = "server_latency"
	keyServerHealthy = "server_healthy"
)

// sampleKey is the per-backend rolling latency-sample list key: the
// backend's own URL, used verbatim as a Redis list key.
func sampleKey(url string) string {
	return url
}
