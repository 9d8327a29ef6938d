package cel

import "testing"

func TestEvaluateMatchesBodyContains(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	prg, err := e.Compile(`body.contains("DROP TABLE") && method == "POST"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	matched, err := e.Evaluate(prg, RequestAttributes{Method: "POST", Body: "'; DROP TABLE users; --"})
	if err != nil || !matched {
		t.Fatalf("expected match, got matched=%v err=%v", matched, err)
	}

	matched, err = e.Evaluate(prg, RequestAttributes{Method: "GET", Body: "'; DROP TABLE users; --"})
	if err != nil || matched {
		t.Fatalf("expected no match for GET, got matched=%v err=%v", matched, err)
	}
}

func TestEvaluateHeaderFunction(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	prg, err := e.Compile(`header(headers, "x-forwarded-for") == "10.0.0.1"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	matched, err := e.Evaluate(prg, RequestAttributes{Headers: map[string]string{"X-Forwarded-For": "10.0.0.1"}})
	if err != nil || !matched {
		t.Fatalf("expected header match, got matched=%v err=%v", matched, err)
	}
}

func TestValidateExpressionRejectsTooLong(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	long := make([]byte, maxExpressionLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if err := e.ValidateExpression(string(long)); err == nil {
		t.Fatalf("expected error for over-length expression")
	}
}

func TestValidateExpressionRejectsEmpty(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if err := e.ValidateExpression(""); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestValidateExpressionRejectsInvalidSyntax(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if err := e.ValidateExpression(`method ===`); err == nil {
		t.Fatalf("expected error for invalid syntax")
	}
}
