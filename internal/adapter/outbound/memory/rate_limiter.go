// Package memory provides in-memory implementations of Vigil's outbound
// ports: the sliding-window rate limiter, the ML score cache, and the admin
// session token set.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
)

// SlidingWindowLimiter implements ratelimit.Limiter by tracking the exact
// timestamps of recent events per key and counting how many fall within the
// trailing window. Unlike a token bucket, admission is a precise function of
// the last Window of history, which is the semantics threat-intel providers
// advertise ("N requests per minute") and the reference limiter implements.
// Thread-safe; includes background cleanup to bound memory growth from keys
// that go idle.
type SlidingWindowLimiter struct {
	mu              sync.Mutex
	events          map[string][]time.Time
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxIdle         time.Duration
}

// NewSlidingWindowLimiter creates a limiter with default cleanup settings
// (runs every 5 minutes, drops keys idle for more than an hour).
func NewSlidingWindowLimiter() *SlidingWindowLimiter {
	return NewSlidingWindowLimiterWithConfig(5*time.Minute, time.Hour)
}

// NewSlidingWindowLimiterWithConfig creates a limiter with custom cleanup settings.
func NewSlidingWindowLimiterWithConfig(cleanupInterval, maxIdle time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		events:          make(map[string][]time.Time),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
	}
}

// Allow records the attempt and reports whether fewer than config.Limit
// events occurred in the trailing config.Window before now.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string, config ratelimit.Config) (ratelimit.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-config.Window)

	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= config.Limit {
		l.events[key] = kept
		retryAfter := config.Window - now.Sub(kept[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return ratelimit.Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	kept = append(kept, now)
	l.events[key] = kept

	return ratelimit.Result{
		Allowed:   true,
		Remaining: config.Limit - len(kept),
	}, nil
}

// StartCleanup starts the background goroutine that drops keys with no
// events in the last maxIdle. It stops when ctx is cancelled or Stop is called.
func (l *SlidingWindowLimiter) StartCleanup(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *SlidingWindowLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.maxIdle)
	removed := 0
	for key, events := range l.events {
		if len(events) == 0 || events[len(events)-1].Before(cutoff) {
			delete(l.events, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("rate limiter cleanup completed", "removed_keys", removed, "remaining_keys", len(l.events))
	}
}

// Stop gracefully stops the cleanup goroutine. Safe to call multiple times.
func (l *SlidingWindowLimiter) Stop() {
	l.once.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

// Size returns the number of tracked keys. For tests and monitoring.
func (l *SlidingWindowLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

var _ ratelimit.Limiter = (*SlidingWindowLimiter)(nil)
