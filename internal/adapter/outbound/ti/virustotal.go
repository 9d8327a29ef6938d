// Package ti implements the threat-intelligence provider shims: VirusTotal,
// OTX (AlienVault), and AbuseIPDB. Each normalizes its provider-native
// response into a ti.LookupResult using the exact risk heuristics the
// reference implementation uses, so operators see the same risk banding
// regardless of which core implements the proxy.
package ti

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/ti"
)

const vtBaseURL = "https://www.virustotal.com/api/v3"

// VirusTotalProvider queries VirusTotal's v3 API for a file hash, domain, or
// IP report.
type VirusTotalProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewVirusTotalProvider creates a provider using the given API key.
func NewVirusTotalProvider(apiKey string) *VirusTotalProvider {
	return &VirusTotalProvider{apiKey: apiKey, baseURL: vtBaseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// newVirusTotalProviderForTest points the provider at a local test server.
func newVirusTotalProviderForTest(apiKey, baseURL string) *VirusTotalProvider {
	return &VirusTotalProvider{apiKey: apiKey, baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *VirusTotalProvider) Name() string { return "virustotal" }

// vtEndpoint maps an indicator type to its VirusTotal v3 resource path.
func (p *VirusTotalProvider) vtEndpoint(ind ti.Indicator) (string, error) {
	switch ind.Type {
	case "ip":
		return fmt.Sprintf("%s/ip_addresses/%s", p.baseURL, ind.Value), nil
	case "domain":
		return fmt.Sprintf("%s/domains/%s", p.baseURL, ind.Value), nil
	default:
		return "", fmt.Errorf("virustotal: unsupported indicator type %q", ind.Type)
	}
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats map[string]int `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup calls VirusTotal and normalizes last_analysis_stats into a risk
// band: 0 malicious = clean (or low if any suspicious), 1-2 = medium,
// >2 = high.
func (p *VirusTotalProvider) Lookup(ctx context.Context, ind ti.Indicator) (ti.LookupResult, error) {
	url, err := p.vtEndpoint(ind)
	if err != nil {
		return ti.LookupResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ti.LookupResult{}, fmt.Errorf("virustotal: build request: %w", err)
	}
	req.Header.Set("x-apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return ti.LookupResult{}, fmt.Errorf("virustotal: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ti.LookupResult{}, ti.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return ti.LookupResult{}, fmt.Errorf("virustotal: upstream status %d", resp.StatusCode)
	}

	var body vtResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ti.LookupResult{}, fmt.Errorf("virustotal: decode response: %w", err)
	}

	stats := body.Data.Attributes.LastAnalysisStats
	malicious := stats["malicious"]
	suspicious := stats["suspicious"]
	harmless := stats["harmless"]

	risk := ti.RiskClean
	switch {
	case malicious > 2:
		risk = ti.RiskHigh
	case malicious > 0:
		risk = ti.RiskMedium
	case suspicious > 0:
		risk = ti.RiskLow
	}

	return ti.LookupResult{
		Indicator:  ind,
		Provider:   "virustotal",
		Risk:       risk,
		Summary:    fmt.Sprintf("Malicious: %d, Suspicious: %d, Harmless: %d", malicious, suspicious, harmless),
		Raw:        map[string]any{"last_analysis_stats": stats},
		LookedUpAt: time.Now(),
	}, nil
}
