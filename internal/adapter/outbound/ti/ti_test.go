package ti

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domti "github.com/vigilwaf/vigil/internal/domain/ti"
)

func TestVirusTotalRiskHeuristics(t *testing.T) {
	cases := []struct {
		malicious, suspicious int
		wantRisk               domti.Risk
	}{
		{0, 0, domti.RiskClean},
		{0, 1, domti.RiskLow},
		{1, 0, domti.RiskMedium},
		{2, 0, domti.RiskMedium},
		{3, 0, domti.RiskHigh},
	}

	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":` +
				itoa(c.malicious) + `,"suspicious":` + itoa(c.suspicious) + `,"harmless":0}}}}`))
		}))
		p := newVirusTotalProviderForTest("key", srv.URL)
		res, err := p.Lookup(context.Background(), domti.Indicator{Type: "ip", Value: "1.2.3.4"})
		srv.Close()
		if err != nil {
			t.Fatalf("malicious=%d suspicious=%d: %v", c.malicious, c.suspicious, err)
		}
		if res.Risk != c.wantRisk {
			t.Errorf("malicious=%d suspicious=%d: got risk=%s want=%s", c.malicious, c.suspicious, res.Risk, c.wantRisk)
		}
	}
}

func TestVirusTotalNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newVirusTotalProviderForTest("key", srv.URL)
	_, err := p.Lookup(context.Background(), domti.Indicator{Type: "ip", Value: "1.2.3.4"})
	if err != domti.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOTXRiskHeuristics(t *testing.T) {
	cases := []struct {
		count    int
		wantRisk domti.Risk
	}{
		{0, domti.RiskClean},
		{1, domti.RiskMedium},
		{4, domti.RiskMedium},
		{5, domti.RiskHigh},
		{10, domti.RiskHigh},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"pulse_info":{"count":` + itoa(c.count) + `}}`))
		}))
		p := newOTXProviderForTest("key", srv.URL)
		res, err := p.Lookup(context.Background(), domti.Indicator{Type: "ip", Value: "1.2.3.4"})
		srv.Close()
		if err != nil {
			t.Fatalf("count=%d: %v", c.count, err)
		}
		if res.Risk != c.wantRisk {
			t.Errorf("count=%d: got risk=%s want=%s", c.count, res.Risk, c.wantRisk)
		}
	}
}

func TestAbuseIPDBRiskHeuristics(t *testing.T) {
	cases := []struct {
		score    int
		wantRisk domti.Risk
	}{
		{0, domti.RiskClean},
		{1, domti.RiskLow},
		{24, domti.RiskLow},
		{25, domti.RiskMedium},
		{74, domti.RiskMedium},
		{75, domti.RiskHigh},
		{100, domti.RiskHigh},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"abuseConfidenceScore":` + itoa(c.score) + `}}`))
		}))
		p := newAbuseIPDBProviderForTest("key", srv.URL)
		res, err := p.Lookup(context.Background(), domti.Indicator{Type: "ip", Value: "1.2.3.4"})
		srv.Close()
		if err != nil {
			t.Fatalf("score=%d: %v", c.score, err)
		}
		if res.Risk != c.wantRisk {
			t.Errorf("score=%d: got risk=%s want=%s", c.score, res.Risk, c.wantRisk)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
