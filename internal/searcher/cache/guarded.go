package cache

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/searchlab/tweetindex/pkg/redis"
	"github.com/searchlab/tweetindex/pkg/resilience"
)

// GuardedStore bounds every store call by a deadline and stops calling the
// store after consecutive failures. Misses and callers that went away do not
// count as failures.
type GuardedStore struct {
	inner   Store
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func NewGuardedStore(inner Store, timeout time.Duration) *GuardedStore {
	return &GuardedStore{
		inner: inner,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			Ignore:           notStoreFault,
		}),
		timeout: timeout,
	}
}

func notStoreFault(err error) bool {
	return pkgredis.IsNilError(err) || errors.Is(err, context.Canceled)
}

func (g *GuardedStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := g.breaker.Execute(func() error {
		var err error
		v, err = resilience.Call(ctx, g.timeout, "cache get", func(ctx context.Context) (string, error) {
			return g.inner.Get(ctx, key)
		})
		return err
	})
	return v, err
}

func (g *GuardedStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		_, err := resilience.Call(ctx, g.timeout, "cache set", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, g.inner.Set(ctx, key, value, ttl)
		})
		return err
	})
}

// FlushByPattern bypasses the breaker; invalidation is an operator action
// and should report the real error.
func (g *GuardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.inner.FlushByPattern(ctx, pattern)
}

func (g *GuardedStore) State() resilience.State {
	return g.breaker.State()
}
