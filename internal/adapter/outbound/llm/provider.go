// Package llm implements the three Analysis Service LLM provider variants:
// remote (OpenAI-compatible chat completion, JSON mode), local (an Ollama-
// style endpoint with forced JSON output), and mock (a deterministic
// canned response used whenever no credentials are configured). All three
// satisfy analysis.Provider's single Generate capability so the service
// never branches on which one is active beyond startup selection.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultSystemPrompt is the canonical defensive-analyst system prompt sent
// to remote and local providers.
const DefaultSystemPrompt = `You are a cybersecurity analyst assistant.
You provide defensive security analysis only.
You must NOT generate exploit code or attack steps.
Your task is to explain attacks and recommend mitigations and patches.

Return results in STRICT JSON format with the following schema:
{
  "attack_type": "string",
  "root_cause": "string",
  "risk_level": "low|medium|high|critical",
  "mitigations": [
    { "category": "code|config|waf", "description": "string" }
  ],
  "virtual_patches": [
    { "target": "WAF|Nginx|App", "rule": "string" }
  ],
  "references": [
    { "standard": "OWASP|CWE|NIST", "id": "string", "title": "string" }
  ]
}`

// RemoteProvider calls an OpenAI-compatible chat completion endpoint
// (Groq, OpenRouter, etc.) with response_format=json_object.
type RemoteProvider struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewRemoteProvider(apiURL, apiKey, model string) *RemoteProvider {
	if model == "" {
		model = "llama3-70b-8192"
	}
	return &RemoteProvider{apiURL: apiURL, apiKey: apiKey, model: model, client: &http.Client{Timeout: 30 * time.Second}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]string      `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *RemoteProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("llm remote: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm remote: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm remote: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm remote: upstream status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm remote: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm remote: no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

// LocalProvider calls a local Ollama-style /api/generate endpoint with
// format=json forced.
type LocalProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewLocalProvider(baseURL, model string) *LocalProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &LocalProvider{baseURL: baseURL, model: model, client: &http.Client{Timeout: 60 * time.Second}}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (p *LocalProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  p.model,
		System: systemPrompt,
		Prompt: userPrompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("llm local: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm local: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm local: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm local: upstream status %d", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm local: decode response: %w", err)
	}
	return out.Response, nil
}

// MockProvider returns a deterministic canned analysis, used when no LLM
// credentials are configured. Matches the reference mock's fixed response
// byte-for-byte in content so operators relying on it for demos/tests see
// familiar output.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

const mockResponseJSON = `{
  "attack_type": "SQL Injection (Mock)",
  "root_cause": "Improper sanitization of user input in database queries.",
  "risk_level": "critical",
  "mitigations": [
    {"category": "code", "description": "Use parameterized queries or prepared statements."},
    {"category": "config", "description": "Minimize database user privileges."}
  ],
  "virtual_patches": [
    {"target": "WAF", "rule": "Block requests containing 'UNION SELECT' or 'OR 1=1'"}
  ],
  "references": [
    {"standard": "OWASP", "id": "A03:2021", "title": "Injection"}
  ]
}`

func (p *MockProvider) Generate(_ context.Context, _, _ string) (string, error) {
	return mockResponseJSON, nil
}
