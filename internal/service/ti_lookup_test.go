package service

import (
	"context"
	"testing"
	"time"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/domain/controlplane"
	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
	"github.com/vigilwaf/vigil/internal/domain/ti"
)

type fakeEventStore struct {
	restrictions map[string]bool
}

func (s *fakeEventStore) CreateUser(ctx context.Context, u controlplane.User) (int64, error) { return 0, nil }
func (s *fakeEventStore) UserByUsername(ctx context.Context, username string) (controlplane.User, error) {
	return controlplane.User{}, nil
}
func (s *fakeEventStore) InsertWAFLog(ctx context.Context, log controlplane.WAFLog) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) Logs(ctx context.Context, limit, offset int) ([]controlplane.WAFLog, error) {
	return nil, nil
}
func (s *fakeEventStore) Alerts(ctx context.Context, status, severity string) ([]controlplane.Alert, error) {
	return nil, nil
}
func (s *fakeEventStore) AcknowledgeAlert(ctx context.Context, id int64) error { return nil }
func (s *fakeEventStore) CreateRestriction(ctx context.Context, r controlplane.Restriction) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) RestrictionMatch(ctx context.Context, restrictionType, value string) (bool, error) {
	return s.restrictions[restrictionType+"|"+value], nil
}
func (s *fakeEventStore) Restrictions(ctx context.Context) ([]controlplane.Restriction, error) {
	return nil, nil
}
func (s *fakeEventStore) DeleteRestriction(ctx context.Context, id int64) error { return nil }
func (s *fakeEventStore) CreateCustomSignature(ctx context.Context, name, expression string) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) CustomSignatures(ctx context.Context) ([]controlplane.CustomSignature, error) {
	return nil, nil
}
func (s *fakeEventStore) SetCustomSignatureEnabled(ctx context.Context, id int64, enabled bool) error {
	return nil
}
func (s *fakeEventStore) CreatePatchingReport(ctx context.Context, wafLogID int64, reportJSON string) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) PatchingReport(ctx context.Context, id int64) (controlplane.PatchingReport, error) {
	return controlplane.PatchingReport{ID: id, ReportJSON: `{}`}, nil
}
func (s *fakeEventStore) CreateSuspiciousUserProfile(ctx context.Context, identifier, notes string) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) CreateWhitelistEntry(ctx context.Context, pattern, reason string) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) InsertSysLog(ctx context.Context, log controlplane.SysLog) (int64, error) {
	return 1, nil
}
func (s *fakeEventStore) SysLogs(ctx context.Context, limit int) ([]controlplane.SysLog, error) {
	return nil, nil
}
func (s *fakeEventStore) Close() error { return nil }

type stubTIProvider struct {
	name   string
	result ti.LookupResult
	err    error
	calls  int
}

func (p *stubTIProvider) Name() string { return p.name }
func (p *stubTIProvider) Lookup(ctx context.Context, ind ti.Indicator) (ti.LookupResult, error) {
	p.calls++
	return p.result, p.err
}

func TestTILookupShortCircuitsOnRestriction(t *testing.T) {
	store := &fakeEventStore{restrictions: map[string]bool{"ip|1.2.3.4": true}}
	provider := &stubTIProvider{name: "virustotal"}
	limits := map[string]ratelimit.Config{"virustotal": {Limit: 4, Window: time.Minute}}
	svc := NewTILookupService(store, memory.NewTICache(), memory.NewSlidingWindowLimiter(),
		limits, map[string]ti.Provider{"virustotal": provider}, nil)

	result, err := svc.Lookup(context.Background(), "virustotal", ti.Indicator{Type: "ip", Value: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Risk != ti.RiskHigh {
		t.Fatalf("expected high risk from restriction short-circuit, got %v", result.Risk)
	}
	if provider.calls != 0 {
		t.Fatalf("expected provider not to be called, got %d calls", provider.calls)
	}
}

func TestTILookupCachesResult(t *testing.T) {
	store := &fakeEventStore{restrictions: map[string]bool{}}
	provider := &stubTIProvider{name: "otx", result: ti.LookupResult{Provider: "otx", Risk: ti.RiskMedium}}
	svc := NewTILookupService(store, memory.NewTICache(), memory.NewSlidingWindowLimiter(),
		nil, map[string]ti.Provider{"otx": provider}, nil)

	ind := ti.Indicator{Type: "ip", Value: "5.6.7.8"}
	if _, err := svc.Lookup(context.Background(), "otx", ind); err != nil {
		t.Fatalf("first Lookup: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "otx", ind); err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one provider call due to caching, got %d", provider.calls)
	}
}

func TestTILookupRejectsUnknownProvider(t *testing.T) {
	store := &fakeEventStore{restrictions: map[string]bool{}}
	svc := NewTILookupService(store, memory.NewTICache(), memory.NewSlidingWindowLimiter(),
		nil, map[string]ti.Provider{}, nil)

	if _, err := svc.Lookup(context.Background(), "unknown", ti.Indicator{Type: "ip", Value: "1.1.1.1"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestTILookupEnforcesRateLimit(t *testing.T) {
	store := &fakeEventStore{restrictions: map[string]bool{}}
	provider := &stubTIProvider{name: "abuseipdb", result: ti.LookupResult{Provider: "abuseipdb", Risk: ti.RiskLow}}
	limits := map[string]ratelimit.Config{"abuseipdb": {Limit: 1, Window: time.Minute}}
	svc := NewTILookupService(store, memory.NewTICache(), memory.NewSlidingWindowLimiter(),
		limits, map[string]ti.Provider{"abuseipdb": provider}, nil)

	if _, err := svc.Lookup(context.Background(), "abuseipdb", ti.Indicator{Type: "ip", Value: "9.9.9.1"}); err != nil {
		t.Fatalf("first lookup should succeed: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "abuseipdb", ti.Indicator{Type: "ip", Value: "9.9.9.2"}); err == nil {
		t.Fatal("expected second distinct-indicator lookup to hit the per-provider rate limit")
	}
}
