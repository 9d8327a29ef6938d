// Package mlclient implements the HTTP client to the external ML scoring
// service. The model itself is out of scope; this package only speaks the
// request/response contract.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the ML service's /score endpoint. Score failures never
// propagate to the pipeline's response — callers treat Unavailable as "no
// opinion" and proceed with signature-only classification.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client with the given base URL and a fail-fast timeout: the
// hot path cannot afford to wait long for a scoring opinion.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type scoreRequest struct {
	Path string `json:"path"`
	Body string `json:"body"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score sends decodedPathAndQuery and body to the ML service and returns its
// score in [0,1]. unavailable is true (and err nil) whenever the service
// could not be reached, answered with any status other than 200, or sent a
// body that does not decode as a score — the caller should fail open, not
// fail the request.
func (c *Client) Score(ctx context.Context, decodedPathAndQuery string, body []byte) (score float64, unavailable bool, err error) {
	payload, err := json.Marshal(scoreRequest{Path: decodedPathAndQuery, Body: string(body)})
	if err != nil {
		return 0, false, fmt.Errorf("mlclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(payload))
	if err != nil {
		return 0, false, fmt.Errorf("mlclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, true, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, true, nil
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, true, nil
	}
	return out.Score, false, nil
}
