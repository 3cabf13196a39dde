// Package cache memoises candidate lists in Redis. Entries are keyed by the
// feature layout and the recognised symptom set, so a retrained model with
// a different layout never reads stale answers. Concurrent misses for the
// same key are collapsed with singleflight, and Redis errors trip a circuit
// breaker after which the cache computes directly until Redis recovers.
// Each Redis call is bounded by RedisConfig.OpTimeout.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/resilience"
)

const keyPrefix = "triage:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// PredictionCache implements triage.Cache.
type PredictionCache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

var _ triage.Cache = (*PredictionCache)(nil)

// New creates a PredictionCache. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *PredictionCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &PredictionCache{
		store:     store,
		ttl:       cfg.CacheTTL,
		opTimeout: cfg.OpTimeout,
		breaker:   resilience.NewCircuitBreaker("redis-cache", cbCfg),
		metrics:   m,
		logger:    slog.Default().With("component", "prediction-cache"),
	}
}

// Get returns the cached candidates for the key, if any. Backend errors are
// logged and reported as a miss.
func (c *PredictionCache) Get(ctx context.Context, layout string, recognized []string) ([]triage.Candidate, bool) {
	key := Key(layout, recognized)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = resilience.Call(ctx, c.opTimeout, "cache-get", func(ctx context.Context) ([]byte, error) {
			return c.store.Get(ctx, key)
		})
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var out []triage.Candidate
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "key", key)
	return out, true
}

// Set stores candidates under the key with the configured TTL.
func (c *PredictionCache) Set(ctx context.Context, layout string, recognized []string, candidates []triage.Candidate) {
	key := Key(layout, recognized)
	data, err := json.Marshal(candidates)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, "cache-set", func(ctx context.Context) error {
			return c.store.Set(ctx, key, data, c.ttl)
		})
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached candidates or runs compute once per key
// across concurrent callers and stores its result.
func (c *PredictionCache) GetOrCompute(
	ctx context.Context,
	layout string,
	recognized []string,
	compute func() ([]triage.Candidate, error),
) ([]triage.Candidate, bool, error) {
	if out, ok := c.Get(ctx, layout, recognized); ok {
		return out, true, nil
	}
	key := Key(layout, recognized)
	val, err, _ := c.group.Do(key, func() (any, error) {
		out, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, layout, recognized, out)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]triage.Candidate), false, nil
}

// Invalidate deletes every prediction entry.
func (c *PredictionCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counts since creation.
func (c *PredictionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the Redis circuit breaker's state.
func (c *PredictionCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *PredictionCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *PredictionCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key derives the Redis key for a layout and recognised symptom set. The
// recognised names are expected in layout order, which makes the key
// independent of request order.
func Key(layout string, recognized []string) string {
	hash := sha256.Sum256([]byte(layout + "|" + strings.Join(recognized, ",")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
