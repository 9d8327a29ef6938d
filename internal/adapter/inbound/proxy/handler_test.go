package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/domain/record"
	"github.com/vigilwaf/vigil/internal/domain/signature"
	"github.com/vigilwaf/vigil/internal/domain/verdict"
)

type stubMLClient struct {
	score       float64
	unavailable bool
}

func (s stubMLClient) Score(context.Context, string, []byte) (float64, bool, error) {
	return s.score, s.unavailable, nil
}

type noopIngest struct{}

func (noopIngest) Forward(context.Context, record.Record) error { return nil }

type recordingJournal struct{ records []record.Record }

func (j *recordingJournal) Append(rec record.Record) error {
	j.records = append(j.records, rec)
	return nil
}
func (j *recordingJournal) LoadAll() ([]record.Record, error) { return j.records, nil }
func (j *recordingJournal) Close() error                      { return nil }

func newTestHandler(t *testing.T, upstream *httptest.Server, mlScore float64) (*Handler, *recordingJournal) {
	t.Helper()
	doc := signature.Document{Signatures: []signature.Rule{{ID: "sig-sqli", Pattern: `(?i)union\s+select`}}}
	engine, err := signature.NewEngine(doc)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	upstreamURL, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	journal := &recordingJournal{}
	thresholds := verdict.Thresholds{VeryHigh: 0.9, High: 0.75, Medium: 0.5, Low: 0.25}
	h := New(upstreamURL, 2*time.Second, engine, nil, stubMLClient{score: mlScore}, memory.NewScoreCache(10),
		thresholds, journal, noopIngest{}, slog.Default())
	return h, journal
}

func TestServeHTTPBlocksOnSignatureMatch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be reached for a blocked request")
	}))
	defer upstream.Close()

	h, journal := newTestHandler(t, upstream, 0)

	req := httptest.NewRequest(http.MethodGet, "/items?q=union+select+1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if len(journal.records) != 1 || journal.records[0].Verdict != record.VerdictBlocked {
		t.Fatalf("expected one blocked record, got %+v", journal.records)
	}
	if journal.records[0].Reason != "SIG:sig-sqli" {
		t.Fatalf("expected SIG reason, got %q", journal.records[0].Reason)
	}
	if journal.records[0].Score != nil {
		t.Fatalf("expected nil score on signature block, got %v", *journal.records[0].Score)
	}
}

func TestServeHTTPForwardsSafeRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	h, journal := newTestHandler(t, upstream, 0.1)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(journal.records) != 1 || journal.records[0].Verdict != record.VerdictSafe {
		t.Fatalf("expected one safe record, got %+v", journal.records)
	}
	if journal.records[0].Score == nil || *journal.records[0].Score != 0.1 {
		t.Fatalf("expected score 0.1, got %+v", journal.records[0].Score)
	}
}

func TestServeHTTPAlertsOnMediumScore(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, journal := newTestHandler(t, upstream, 0.6)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if len(journal.records) != 1 || journal.records[0].Verdict != record.VerdictAlert {
		t.Fatalf("expected alert verdict, got %+v", journal.records)
	}
}

func TestServeHTTPGatewayErrorOnUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstreamURL, _ := url.Parse(upstream.URL)
	upstream.Close() // guarantee unreachable

	doc := signature.Document{}
	engine, _ := signature.NewEngine(doc)
	journal := &recordingJournal{}
	thresholds := verdict.Thresholds{VeryHigh: 0.9, High: 0.75, Medium: 0.5, Low: 0.25}
	h := New(upstreamURL, 2*time.Second, engine, nil, stubMLClient{score: 0}, memory.NewScoreCache(10),
		thresholds, journal, noopIngest{}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if len(body) == 0 {
		t.Fatal("expected a JSON error body")
	}
}
