package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/llm"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/domain/analysis"
	"github.com/vigilwaf/vigil/internal/domain/controlplane"
	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
	outbound "github.com/vigilwaf/vigil/internal/port/outbound"
)

// AnalysisService runs the Analysis Service flow: sanitize, per-hash cache,
// rate limit, provider call, parse/validate, fallback, persist.
type AnalysisService struct {
	store    outbound.EventStore
	cache    *memory.ReportCache
	limiter  *memory.SlidingWindowLimiter
	limit    ratelimit.Config
	provider analysis.Provider
	logger   *slog.Logger
}

// NewAnalysisService wires the Analysis Service around provider.
func NewAnalysisService(store outbound.EventStore, cache *memory.ReportCache, limiter *memory.SlidingWindowLimiter, limit ratelimit.Config, provider analysis.Provider, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{store: store, cache: cache, limiter: limiter, limit: limit, provider: provider, logger: logger}
}

// Recommend implements admin.AnalysisOrchestrator.
func (s *AnalysisService) Recommend(ctx context.Context, wafLogID int64, description string) (controlplane.PatchingReport, error) {
	sanitized := analysis.Sanitize(description)
	hashKey := analysis.HashKey(sanitized)

	if cached, hit := s.cache.Get(hashKey); hit {
		cached.Cached = true
		return s.persist(ctx, wafLogID, cached)
	}

	key := ratelimit.FormatKey(ratelimit.KeyTypeClient, "analysis")
	result, err := s.limiter.Allow(ctx, key, s.limit)
	if err != nil {
		return controlplane.PatchingReport{}, fmt.Errorf("service: rate limit check: %w", err)
	}
	if !result.Allowed {
		return controlplane.PatchingReport{}, analysis.ErrRateLimited{RetryAfter: result.RetryAfter}
	}

	raw, err := s.provider.Generate(ctx, llm.DefaultSystemPrompt, sanitized)
	if err != nil {
		s.logger.Error("analysis provider call failed", "error", err)
		return s.persist(ctx, wafLogID, analysis.FallbackReport(err.Error()))
	}

	report, ok := parseReport(raw)
	if !ok || !report.Validate() {
		return s.persist(ctx, wafLogID, analysis.FallbackReport("provider response failed schema validation"))
	}

	s.cache.Put(hashKey, report)
	return s.persist(ctx, wafLogID, report)
}

func parseReport(raw string) (analysis.Report, bool) {
	var report analysis.Report
	cleaned := analysis.StripCodeFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return analysis.Report{}, false
	}
	return report, true
}

func (s *AnalysisService) persist(ctx context.Context, wafLogID int64, report analysis.Report) (controlplane.PatchingReport, error) {
	encoded, err := json.Marshal(report)
	if err != nil {
		return controlplane.PatchingReport{}, fmt.Errorf("service: marshal report: %w", err)
	}
	id, err := s.store.CreatePatchingReport(ctx, wafLogID, string(encoded))
	if err != nil {
		return controlplane.PatchingReport{}, fmt.Errorf("service: persist report: %w", err)
	}
	return s.store.PatchingReport(ctx, id)
}
