package ti

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/ti"
)

const abuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2/check"

// AbuseIPDBProvider queries AbuseIPDB's confidence-of-abuse score for an IP.
type AbuseIPDBProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAbuseIPDBProvider(apiKey string) *AbuseIPDBProvider {
	return &AbuseIPDBProvider{apiKey: apiKey, baseURL: abuseIPDBBaseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func newAbuseIPDBProviderForTest(apiKey, baseURL string) *AbuseIPDBProvider {
	return &AbuseIPDBProvider{apiKey: apiKey, baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *AbuseIPDBProvider) Name() string { return "abuseipdb" }

type abuseIPDBResponse struct {
	Data struct {
		AbuseConfidenceScore int `json:"abuseConfidenceScore"`
	} `json:"data"`
}

// Lookup calls AbuseIPDB's check endpoint and normalizes the confidence
// score into a risk band: [0,25) = low, [25,75) = medium, [75,100] = high,
// 0 exactly = clean. Only IP indicators are supported.
func (p *AbuseIPDBProvider) Lookup(ctx context.Context, ind ti.Indicator) (ti.LookupResult, error) {
	if ind.Type != "ip" {
		return ti.LookupResult{}, fmt.Errorf("abuseipdb: unsupported indicator type %q", ind.Type)
	}

	endpoint := p.baseURL + "?" + url.Values{
		"ipAddress":    {ind.Value},
		"maxAgeInDays": {"90"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ti.LookupResult{}, fmt.Errorf("abuseipdb: build request: %w", err)
	}
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ti.LookupResult{}, fmt.Errorf("abuseipdb: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ti.LookupResult{}, ti.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return ti.LookupResult{}, fmt.Errorf("abuseipdb: upstream status %d", resp.StatusCode)
	}

	var body abuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ti.LookupResult{}, fmt.Errorf("abuseipdb: decode response: %w", err)
	}

	score := body.Data.AbuseConfidenceScore
	risk := ti.RiskClean
	switch {
	case score >= 75:
		risk = ti.RiskHigh
	case score >= 25:
		risk = ti.RiskMedium
	case score > 0:
		risk = ti.RiskLow
	}

	return ti.LookupResult{
		Indicator:  ind,
		Provider:   "abuseipdb",
		Risk:       risk,
		Summary:    fmt.Sprintf("Abuse Confidence Score: %d%%", score),
		Raw:        map[string]any{"abuse_confidence_score": score},
		LookedUpAt: time.Now(),
	}, nil
}
