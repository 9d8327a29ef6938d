package ti

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/ti"
)

const otxBaseURL = "https://otx.alienvault.com/api/v1"

// OTXProvider queries AlienVault OTX's pulse index for an indicator.
type OTXProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOTXProvider(apiKey string) *OTXProvider {
	return &OTXProvider{apiKey: apiKey, baseURL: otxBaseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func newOTXProviderForTest(apiKey, baseURL string) *OTXProvider {
	return &OTXProvider{apiKey: apiKey, baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *OTXProvider) Name() string { return "otx" }

func (p *OTXProvider) otxEndpoint(ind ti.Indicator) (string, error) {
	switch ind.Type {
	case "ip":
		return fmt.Sprintf("%s/indicators/IPv4/%s/general", p.baseURL, ind.Value), nil
	case "domain":
		return fmt.Sprintf("%s/indicators/domain/%s/general", p.baseURL, ind.Value), nil
	default:
		return "", fmt.Errorf("otx: unsupported indicator type %q", ind.Type)
	}
}

type otxResponse struct {
	PulseInfo struct {
		Count int `json:"count"`
	} `json:"pulse_info"`
}

// Lookup calls OTX and normalizes pulse count into a risk band: 0 pulses =
// clean, 1-4 = medium, >=5 = high.
func (p *OTXProvider) Lookup(ctx context.Context, ind ti.Indicator) (ti.LookupResult, error) {
	url, err := p.otxEndpoint(ind)
	if err != nil {
		return ti.LookupResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ti.LookupResult{}, fmt.Errorf("otx: build request: %w", err)
	}
	req.Header.Set("X-OTX-API-KEY", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return ti.LookupResult{}, fmt.Errorf("otx: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ti.LookupResult{}, ti.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return ti.LookupResult{}, fmt.Errorf("otx: upstream status %d", resp.StatusCode)
	}

	var body otxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ti.LookupResult{}, fmt.Errorf("otx: decode response: %w", err)
	}

	count := body.PulseInfo.Count
	risk := ti.RiskClean
	switch {
	case count >= 5:
		risk = ti.RiskHigh
	case count > 0:
		risk = ti.RiskMedium
	}

	return ti.LookupResult{
		Indicator:  ind,
		Provider:   "otx",
		Risk:       risk,
		Summary:    fmt.Sprintf("Found in %d OTX pulses", count),
		Raw:        map[string]any{"pulse_count": count},
		LookedUpAt: time.Now(),
	}, nil
}
