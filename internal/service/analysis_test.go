package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/llm"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/domain/analysis"
	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
)

func TestAnalysisRecommendUsesMockProviderAndPersists(t *testing.T) {
	store := &fakeEventStore{restrictions: map[string]bool{}}
	svc := NewAnalysisService(store, memory.NewReportCache(10), memory.NewSlidingWindowLimiter(),
		ratelimit.Config{Limit: 10, Window: time.Minute}, llm.NewMockProvider(), nil)

	report, err := svc.Recommend(context.Background(), 1, "' OR 1=1 --")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if report.ID == 0 {
		t.Fatal("expected a persisted report id")
	}
}

func TestAnalysisRecommendCachesByDescriptionHash(t *testing.T) {
	// With a limit of one call, the second identical description can only
	// succeed if it is served from the per-hash cache.
	store := &fakeEventStore{restrictions: map[string]bool{}}
	svc := NewAnalysisService(store, memory.NewReportCache(10), memory.NewSlidingWindowLimiter(),
		ratelimit.Config{Limit: 1, Window: time.Minute}, llm.NewMockProvider(), nil)

	if _, err := svc.Recommend(context.Background(), 1, "identical payload"); err != nil {
		t.Fatalf("first Recommend: %v", err)
	}
	if _, err := svc.Recommend(context.Background(), 2, "identical payload"); err != nil {
		t.Fatalf("second Recommend: %v", err)
	}
}

func TestAnalysisRecommendReturnsErrRateLimited(t *testing.T) {
	store := &fakeEventStore{restrictions: map[string]bool{}}
	svc := NewAnalysisService(store, memory.NewReportCache(10), memory.NewSlidingWindowLimiter(),
		ratelimit.Config{Limit: 1, Window: time.Minute}, llm.NewMockProvider(), nil)

	if _, err := svc.Recommend(context.Background(), 1, "first payload"); err != nil {
		t.Fatalf("first Recommend: %v", err)
	}
	_, err := svc.Recommend(context.Background(), 2, "second different payload")
	var rateLimited analysis.ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
