package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertWAFLogCreatesAlertForNonSafeVerdict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	score := 0.92
	id, err := s.InsertWAFLog(ctx, controlplane.WAFLog{
		Timestamp: time.Now(), ClientIP: "1.2.3.4", Method: "POST", URL: "/items",
		Verdict: "blocked", Reason: "ML:0.92 (very high)", Score: &score, AttackType: "Anomaly",
	})
	if err != nil {
		t.Fatalf("InsertWAFLog: %v", err)
	}

	alerts, err := s.Alerts(ctx, "", "")
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].WAFLogID != id {
		t.Fatalf("expected one alert referencing waf_log %d, got %+v", id, alerts)
	}
	if alerts[0].Severity != controlplane.SeverityCritical {
		t.Fatalf("expected Critical severity for blocked verdict, got %s", alerts[0].Severity)
	}
}

func TestInsertWAFLogSkipsAlertForSafeVerdict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertWAFLog(ctx, controlplane.WAFLog{Timestamp: time.Now(), Verdict: "safe"}); err != nil {
		t.Fatalf("InsertWAFLog: %v", err)
	}
	alerts, err := s.Alerts(ctx, "", "")
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts for safe verdict, got %d", len(alerts))
	}
}

func TestRestrictionMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRestriction(ctx, controlplane.Restriction{Type: controlplane.RestrictionIP, Value: "9.9.9.9", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRestriction: %v", err)
	}

	matched, err := s.RestrictionMatch(ctx, "ip", "9.9.9.9")
	if err != nil || !matched {
		t.Fatalf("expected match, got matched=%v err=%v", matched, err)
	}

	matched, err = s.RestrictionMatch(ctx, "ip", "8.8.8.8")
	if err != nil || matched {
		t.Fatalf("expected no match, got matched=%v err=%v", matched, err)
	}
}

func TestGenericReadRejectsUnlistedTable(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GenericRead(context.Background(), "sqlite_master", ""); err == nil {
		t.Fatalf("expected error for non-allow-listed table")
	}
}

func TestGenericReadListsAllowedTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateRestriction(ctx, controlplane.Restriction{Type: controlplane.RestrictionIP, Value: "1.1.1.1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRestriction: %v", err)
	}

	rows, err := s.GenericRead(ctx, "restrictions", "")
	if err != nil {
		t.Fatalf("GenericRead: %v", err)
	}
	if len(rows) != 1 || rows[0]["value"] != "1.1.1.1" {
		t.Fatalf("got %+v", rows)
	}
}

func TestKPIsCountsBlockedAndTotal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _ = s.InsertWAFLog(ctx, controlplane.WAFLog{Timestamp: time.Now(), Verdict: "safe"})
	_, _ = s.InsertWAFLog(ctx, controlplane.WAFLog{Timestamp: time.Now(), Verdict: "blocked"})

	kpis, err := s.KPIs(ctx)
	if err != nil {
		t.Fatalf("KPIs: %v", err)
	}
	if kpis.TotalRequests != 2 || kpis.BlockedAttacks != 1 {
		t.Fatalf("got %+v", kpis)
	}
}
