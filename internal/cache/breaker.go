package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerCache stops calling the wrapped cache after repeated failures and
// fails fast until the open timeout elapses. Misses count as successes.
type BreakerCache struct {
	next Cache
	cb   *gobreaker.CircuitBreaker[struct{}]
}

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func NewBreakerCache(next Cache, settings BreakerSettings, logger *zap.Logger) *BreakerCache {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerCache{next: next, cb: cb}
}

func (b *BreakerCache) do(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("cache unavailable: %w", err)
	}
	return err
}

func (b *BreakerCache) Get(ctx context.Context, key string, dst any) error {
	return b.do(func() error { return b.next.Get(ctx, key, dst) })
}

func (b *BreakerCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return b.do(func() error { return b.next.Set(ctx, key, value, ttl) })
}

func (b *BreakerCache) Delete(ctx context.Context, keys ...string) error {
	return b.do(func() error { return b.next.Delete(ctx, keys...) })
}

func (b *BreakerCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return b.do(func() error { return b.next.DeleteByPattern(ctx, pattern) })
}

func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}
