package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
	"github.com/vigilwaf/vigil/internal/domain/ti"
	outbound "github.com/vigilwaf/vigil/internal/port/outbound"
)

// TILookupService resolves a single indicator through the restriction
// short-circuit, the TI cache, the per-provider sliding-window rate
// limiter, and finally the provider call itself — in that order, so a
// restriction hit or a cache hit never spends rate-limit budget or reaches
// the network.
type TILookupService struct {
	store     outbound.EventStore
	cache     *memory.TICache
	limiter   *memory.SlidingWindowLimiter
	limits    map[string]ratelimit.Config
	providers map[string]ti.Provider
	logger    *slog.Logger
}

// NewTILookupService wires providers by name ("virustotal", "otx",
// "abuseipdb") against a shared cache and limiter. limits carries one
// ratelimit.Config per provider name; a provider with no entry in limits is
// never rate-limited (OTX, per the reference implementation, has no cap).
func NewTILookupService(store outbound.EventStore, cache *memory.TICache, limiter *memory.SlidingWindowLimiter, limits map[string]ratelimit.Config, providers map[string]ti.Provider, logger *slog.Logger) *TILookupService {
	return &TILookupService{store: store, cache: cache, limiter: limiter, limits: limits, providers: providers, logger: logger}
}

// Lookup implements admin.TIOrchestrator.
func (s *TILookupService) Lookup(ctx context.Context, providerName string, ind ti.Indicator) (ti.LookupResult, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return ti.LookupResult{}, fmt.Errorf("service: unknown threat intelligence provider %q", providerName)
	}

	restrictionType := "ip"
	if ind.Type == "domain" {
		restrictionType = "domain"
	}
	if blocked, err := s.store.RestrictionMatch(ctx, restrictionType, ind.Value); err == nil && blocked {
		return ti.LookupResult{
			Indicator: ind,
			Provider:  providerName,
			Risk:      ti.RiskHigh,
			Summary:   "indicator matches a local restriction entry",
		}, nil
	}

	if cached, hit := s.cache.Get(providerName, ind); hit {
		return cached, nil
	}

	if limit, limited := s.limits[providerName]; limited {
		key := ratelimit.FormatKey(ratelimit.KeyTypeProvider, providerName)
		result, err := s.limiter.Allow(ctx, key, limit)
		if err != nil {
			return ti.LookupResult{}, fmt.Errorf("service: rate limit check: %w", err)
		}
		if !result.Allowed {
			return ti.LookupResult{}, fmt.Errorf("service: rate limit exceeded for provider %q, retry after %s", providerName, result.RetryAfter)
		}
	}

	lookup, err := provider.Lookup(ctx, ind)
	if err != nil {
		if err == ti.ErrNotFound {
			lookup = ti.LookupResult{Indicator: ind, Provider: providerName, Risk: ti.RiskUnknown, Summary: "indicator not found upstream"}
		} else {
			s.logger.Error("ti provider lookup failed", "provider", providerName, "error", err)
			return ti.LookupResult{}, err
		}
	}

	s.cache.Put(providerName, ind, lookup, memory.IndicatorLookupTTL)
	return lookup, nil
}
