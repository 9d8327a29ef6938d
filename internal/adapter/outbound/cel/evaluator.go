// Package cel evaluates custom signatures — operator-authored boolean
// expressions, stored by the Control Plane, tested against a restricted
// view of the inspected request. This runs after the static regex rule set
// in the same scan pass: a CEL hit produces the same SIG:<id> block
// semantics as a regex hit, but with a bounded, sandboxed evaluation cost
// instead of an unconstrained pattern.
package cel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

const (
	maxExpressionLength = 1024
	maxCostBudget       = 100_000
	maxNestingDepth      = 50
	evalTimeout          = 2 * time.Second
	interruptCheckFreq   = 100
)

// RequestAttributes is the restricted activation surface a custom
// signature expression may reference.
type RequestAttributes struct {
	Method      string
	Path        string
	Query       string
	Body        string
	ContentType string
	Headers     map[string]string
}

// Evaluator compiles and evaluates custom-signature CEL expressions.
type Evaluator struct {
	env *cel.Env
}

// NewSignatureEnvironment builds the CEL environment custom signatures run
// against: method/path/query/body/body_len/content_type/headers plus a
// case-insensitive header(headers, name) lookup function.
func NewSignatureEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.StringType),
		cel.Variable("body", cel.StringType),
		cel.Variable("body_len", cel.IntType),
		cel.Variable("content_type", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),

		cel.Function("header",
			cel.Overload("header_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.StringType), cel.StringType},
				cel.StringType,
				cel.BinaryBinding(func(headersVal, nameVal ref.Val) ref.Val {
					name := strings.ToLower(nameVal.Value().(string))
					headers, ok := headersVal.Value().(map[string]string)
					if !ok {
						return types.String("")
					}
					for k, v := range headers {
						if strings.ToLower(k) == name {
							return types.String(v)
						}
					}
					return types.String("")
				}),
			),
		),
	)
}

// NewEvaluator creates an Evaluator with the signature environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewSignatureEnvironment()
	if err != nil {
		return nil, fmt.Errorf("cel: create signature environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks expr, returning a cost-limited program.
func (e *Evaluator) Compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: compile: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("cel: build program: %w", err)
	}
	return prg, nil
}

func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("cel: expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that expr is non-empty, within the length and
// nesting limits, and compiles. The admin API's create handler does not
// call it; CustomSignatureSet.Reload skips any stored expression that fails
// to compile.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("cel: expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("cel: expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("cel: invalid expression: %w", err)
	}
	return nil
}

// Evaluate runs a compiled program against attrs and reports whether it
// matched. A timeout bounds worst-case evaluation time regardless of the
// cost limit, since cost accounting does not cover every CEL builtin.
func (e *Evaluator) Evaluate(prg cel.Program, attrs RequestAttributes) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	activation := map[string]any{
		"method":       attrs.Method,
		"path":         attrs.Path,
		"query":        attrs.Query,
		"body":         attrs.Body,
		"body_len":     int64(len(attrs.Body)),
		"content_type": attrs.ContentType,
		"headers":      attrs.Headers,
	}

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("cel: evaluate: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cel: expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}
