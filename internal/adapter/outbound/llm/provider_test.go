package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRemoteProviderExtractsChatContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"attack_type\":\"x\"}"}}]}`))
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, "key", "")
	out, err := p.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "attack_type") {
		t.Fatalf("got %q", out)
	}
}

func TestLocalProviderExtractsResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Format != "json" {
			t.Errorf("expected forced json format, got %q", req.Format)
		}
		w.Write([]byte(`{"response":"{\"attack_type\":\"y\"}"}`))
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "")
	out, err := p.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "attack_type") {
		t.Fatalf("got %q", out)
	}
}

func TestMockProviderReturnsCannedResponse(t *testing.T) {
	p := NewMockProvider()
	out, err := p.Generate(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "SQL Injection (Mock)") {
		t.Fatalf("got %q", out)
	}
}
