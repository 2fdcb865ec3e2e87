// Package ratelimit provides fixed-window counters for throttling OTP issuance
// and verification attempts.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Counter is a fixed-window counter store. The window starts at the first
// hit for a key and is not extended by later hits.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Del(ctx context.Context, key string) error
}

// Limiter applies budgets on top of a Counter.
type Limiter struct {
	counter Counter
	prefix  string
}

func New(counter Counter, prefix string) *Limiter {
	return &Limiter{counter: counter, prefix: prefix}
}

// Allow records a hit and fails with ErrRateLimited once the window has seen
// more than max hits.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if max <= 0 {
		return nil
	}
	count, err := l.counter.Incr(ctx, l.key(key), window)
	if err != nil {
		return err
	}
	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter, typically after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Del(ctx, l.key(key))
}

func (l *Limiter) key(k string) string {
	if l.prefix == "" {
		return k
	}
	return l.prefix + ":" + k
}
