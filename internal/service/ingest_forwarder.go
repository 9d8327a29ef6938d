package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
	"github.com/vigilwaf/vigil/internal/domain/record"
)

// HTTPIngestForwarder posts non-safe Request Records from the Detection
// Pipeline to the Control Plane's /api/ingest_log endpoint, authenticated
// with a static service bearer token distinct from admin session tokens.
type HTTPIngestForwarder struct {
	ingestURL string
	token     string
	client    *http.Client
}

// NewHTTPIngestForwarder creates a forwarder posting to ingestURL.
func NewHTTPIngestForwarder(ingestURL, token string) *HTTPIngestForwarder {
	return &HTTPIngestForwarder{ingestURL: ingestURL, token: token, client: &http.Client{Timeout: 5 * time.Second}}
}

// Forward implements proxy.IngestForwarder. It marshals the same WAFLog
// shape /api/ingest_log decodes into, so no intermediate wire struct needs
// to stay in sync with controlplane.WAFLog's fields.
func (f *HTTPIngestForwarder) Forward(ctx context.Context, rec record.Record) error {
	payload := controlplane.WAFLog{
		Timestamp:      rec.Timestamp,
		ClientIP:       rec.ClientIP,
		Method:         rec.Method,
		URL:            rec.URL,
		Verdict:        string(rec.Verdict),
		Reason:         rec.Reason,
		Score:          rec.Score,
		AttackType:     controlplane.AttackTypeFromReason(rec.Reason),
		UpstreamStatus: rec.UpstreamStatus,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("service: marshal ingest payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.ingestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("service: build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("service: ingest request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("service: ingest endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
