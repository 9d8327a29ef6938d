package memory

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
)

func TestSlidingWindowLimiterAdmitsUpToLimit(t *testing.T) {
	l := NewSlidingWindowLimiter()
	cfg := ratelimit.Config{Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		res, err := l.Allow(context.Background(), "k", cfg)
		if err != nil || !res.Allowed {
			t.Fatalf("attempt %d: got allowed=%v err=%v", i, res.Allowed, err)
		}
	}

	res, err := l.Allow(context.Background(), "k", cfg)
	if err != nil || res.Allowed {
		t.Fatalf("4th attempt should be denied, got allowed=%v", res.Allowed)
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", res.RetryAfter)
	}
}

func TestSlidingWindowLimiterExpiresOldEvents(t *testing.T) {
	l := NewSlidingWindowLimiter()
	cfg := ratelimit.Config{Limit: 1, Window: 20 * time.Millisecond}

	res, _ := l.Allow(context.Background(), "k", cfg)
	if !res.Allowed {
		t.Fatalf("first attempt should be allowed")
	}
	res, _ = l.Allow(context.Background(), "k", cfg)
	if res.Allowed {
		t.Fatalf("second attempt within window should be denied")
	}

	time.Sleep(30 * time.Millisecond)

	res, _ = l.Allow(context.Background(), "k", cfg)
	if !res.Allowed {
		t.Fatalf("attempt after window elapsed should be allowed")
	}
}

func TestSlidingWindowLimiterKeysAreIndependent(t *testing.T) {
	l := NewSlidingWindowLimiter()
	cfg := ratelimit.Config{Limit: 1, Window: time.Minute}

	l.Allow(context.Background(), "a", cfg)
	res, _ := l.Allow(context.Background(), "b", cfg)
	if !res.Allowed {
		t.Fatalf("independent key should be allowed")
	}
}

func TestCleanupStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewSlidingWindowLimiterWithConfig(5*time.Millisecond, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l.Allow(context.Background(), "k", ratelimit.Config{Limit: 1, Window: time.Second})
	l.StartCleanup(ctx)
	time.Sleep(20 * time.Millisecond)
	l.Stop()

	if l.Size() != 0 {
		t.Fatalf("expected idle key to be cleaned up, size=%d", l.Size())
	}
}
