package signature

import "testing"

func doc() Document {
	return Document{Signatures: []Rule{
		{ID: "sqli-union", Pattern: `(?i)union\s+select`},
		{ID: "xss-script", Pattern: `(?i)<script`},
	}}
}

func TestScanMatchesPath(t *testing.T) {
	e, err := NewEngine(doc())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	m, ok := e.Scan("/search/union%20select%20*", "", nil)
	if !ok || m.SignatureID != "sqli-union" {
		t.Fatalf("expected sqli-union match, got %+v ok=%v", m, ok)
	}
}

func TestScanMatchesBody(t *testing.T) {
	e, err := NewEngine(doc())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	m, ok := e.Scan("/comment", "", []byte("<script>alert(1)</script>"))
	if !ok || m.SignatureID != "xss-script" || m.Surface != "body" {
		t.Fatalf("expected xss-script/body match, got %+v ok=%v", m, ok)
	}
}

func TestScanNoMatch(t *testing.T) {
	e, err := NewEngine(doc())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, ok := e.Scan("/hello", "q=world", []byte("fine")); ok {
		t.Fatalf("expected no match")
	}
}

func TestSetEnabledDisablesRule(t *testing.T) {
	e, err := NewEngine(doc())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetEnabled("sqli-union", false)
	if _, ok := e.Scan("/union select 1", "", nil); ok {
		t.Fatalf("expected disabled rule not to match")
	}
}

func TestSetEnabledUnknownIsNoop(t *testing.T) {
	e, err := NewEngine(doc())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetEnabled("does-not-exist", false)
}
