package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/kestrel-proxy/dispatchcore/internal/apierror"
	"github.com/kestrel-proxy/dispatchcore/internal/backendpool"
)

// RedisStore is the store-backed telemetry client: it lets multiple proxy
// instances share backend telemetry and lets the
// health prober and latency aggregator run without any cross-process
// locking of their own. All mutation is expressed as single Redis commands
// so concurrent dispatchers can never race each other client-side.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an already-constructed client. Callers typically
// build the client from redis_url via redis.ParseURL and
// redis.NewClient/redis.NewClusterClient.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Register(ctx context.Context, backends []backendpool.Backend) error {
	pipe := s.client.Pipeline()
	for _, b := range backends {
		data, err := json.Marshal(b)
		if err != nil {
			return apierror.Wrap(apierror.Other, "marshal backend identity", err)
		}
		pipe.RPush(ctx, keyServerURL, data)
		pipe.HSet(ctx, keyServerWeights, b.URL, b.Weight)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apierror.Wrap(apierror.TelemetryStoreError, "register backends", err)
	}
	return nil
}

func (s *RedisStore) ListBackends(ctx context.Context) ([]backendpool.Backend, error) {
	raw, err := s.client.LRange(ctx, keyServerURL, 0, -1).Result()
	if err != nil {
		return nil, apierror.Wrap(apierror.TelemetryStoreError, "list backends", err)
	}

	backends := make([]backendpool.Backend, 0, len(raw))
	for _, entry := range raw {
		var b backendpool.Backend
		if err := json.Unmarshal([]byte(entry), &b); err != nil {
			return nil, apierror.Wrap(apierror.TelemetryStoreError, fmt.Sprintf("malformed server_url entry %q", entry), err)
		}
		backends = append(backends, b)
	}
	return backends, nil
}

func (s *RedisStore) IncLoad(ctx context.Context, url string, delta int64) error {
	if err := s.client.HIncrBy(ctx, keyServerLoad, url, delta).Err(); err != nil {
		return apierror.Wrap(apierror.TelemetryStoreError, "incr load", err)
	}
	return nil
}

func (s *RedisStore) LoadAll(ctx context.Context) (map[string]int64, error) {
	return hgetallInt64(ctx, s.client, keyServerLoad)
}

func (s *RedisStore) AppendSample(ctx context.Context, url string, ms int64) error {
	if err := s.client.RPush(ctx, sampleKey(url), ms).Err(); err != nil {
		return apierror.Wrap(apierror.TelemetryStoreError, "append sample", err)
	}
	return nil
}

func (s *RedisStore) Samples(ctx context.Context, url string) ([]int64, error) {
	raw, err := s.client.LRange(ctx, sampleKey(url), 0, -1).Result()
	if err != nil {
		return nil, apierror.Wrap(apierror.TelemetryStoreError, "read samples", err)
	}
	return parseInt64Slice(raw)
}

func (s *RedisStore) SamplesAll(ctx context.Context, urls []string) (map[string][]int64, error) {
	out := make(map[string][]int64, len(urls))
	for _, url := range urls {
		samples, err := s.Samples(ctx, url)
		if err != nil {
			return nil, err
		}
		out[url] = samples
	}
	return out, nil
}

func (s *RedisStore) TrimSamples(ctx context.Context, url string, max int) error {
	if max <= 0 {
		max = MaxSamples
	}
	if err := s.client.LTrim(ctx, sampleKey(url), int64(-max), -1).Err(); err != nil {
		return apierror.Wrap(apierror.TelemetryStoreError, "trim samples", err)
	}
	return nil
}

func (s *RedisStore) PutMean(ctx context.Context, url string, ms int64) error {
	if err := s.client.HSet(ctx, keyServerLatency, url, ms).Err(); err != nil {
		return apierror.Wrap(apierror.TelemetryStoreError, "put mean latency", err)
	}
	return nil
}

func (s *RedisStore) MeanAll(ctx context.Context) (map[string]int64, error) {
	return hgetallInt64(ctx, s.client, keyServerLatency)
}

func (s *RedisStore) WeightsAll(ctx context.Context) (map[string]int64, error) {
	return hgetallInt64(ctx, s.client, keyServerWeights)
}

func (s *RedisStore) SetHealthy(ctx context.Context, url string, healthy bool) error {
	if err := s.client.HSet(ctx, keyServerHealthy, url, healthy).Err(); err != nil {
		return apierror.Wrap(apierror.TelemetryStoreError, "set healthy", err)
	}
	return nil
}

func (s *RedisStore) HealthyAll(ctx context.Context) (map[string]bool, error) {
	raw, err := s.client.HGetAll(ctx, keyServerHealthy).Result()
	if err != nil {
		return nil, apierror.Wrap(apierror.TelemetryStoreError, "read healthy flags", err)
	}
	out := make(map[string]bool, len(raw))
	for k, v := range raw {
		out[k] = v == "1"
	}
	return out, nil
}

func hgetallInt64(ctx context.Context, client redis.UniversalClient, key string) (map[string]int64, error) {
	raw, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, apierror.Wrap(apierror.TelemetryStoreError, fmt.Sprintf("read %s", key), err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, apierror.Wrap(apierror.TelemetryStoreError, fmt.Sprintf("parse %s[%s]=%q", key, k, v), err)
		}
		out[k] = n
	}
	return out, nil
}

func parseInt64Slice(raw []string) ([]int64, error) {
	out := make([]int64, len(raw))
	for i, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, apierror.Wrap(apierror.TelemetryStoreError, fmt.Sprintf("parse sample %q", v), err)
		}
		out[i] = n
	}
	return out, nil
}
