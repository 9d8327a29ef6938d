package proxy

import (
	"sync/atomic"

	"github.com/google/cel-go/cel"

	vigilcel "github.com/vigilwaf/vigil/internal/adapter/outbound/cel"
)

// compiledCustomSignature pairs an operator-authored CEL rule with its
// compiled program, as loaded from the Control-Plane Event Store.
type compiledCustomSignature struct {
	id      string
	prg     cel.Program
	enabled bool
}

// CustomSignatureSet holds the compiled custom-signature rule set, swapped
// atomically so Scan never blocks a reload triggered from the admin API.
type CustomSignatureSet struct {
	evaluator *vigilcel.Evaluator
	rules     atomic.Pointer[[]compiledCustomSignature]
}

// NewCustomSignatureSet creates an empty set bound to evaluator.
func NewCustomSignatureSet(evaluator *vigilcel.Evaluator) *CustomSignatureSet {
	s := &CustomSignatureSet{evaluator: evaluator}
	empty := make([]compiledCustomSignature, 0)
	s.rules.Store(&empty)
	return s
}

// Reload recompiles every (id, expression, enabled) triple and atomically
// swaps the active rule set. A rule that fails to compile is skipped rather
// than aborting the whole reload — one bad operator-authored expression
// must not take every custom signature offline.
func (s *CustomSignatureSet) Reload(entries []CustomSignatureEntry) {
	compiled := make([]compiledCustomSignature, 0, len(entries))
	for _, e := range entries {
		prg, err := s.evaluator.Compile(e.Expression)
		if err != nil {
			continue
		}
		compiled = append(compiled, compiledCustomSignature{id: e.ID, prg: prg, enabled: e.Enabled})
	}
	s.rules.Store(&compiled)
}

// CustomSignatureEntry is the plain-data shape Reload consumes, decoupled
// from the controlplane entity type so this package doesn't need to import it.
type CustomSignatureEntry struct {
	ID         string
	Expression string
	Enabled    bool
}

// Scan evaluates every enabled custom signature against attrs, returning the
// id of the first match.
func (s *CustomSignatureSet) Scan(attrs vigilcel.RequestAttributes) (string, bool) {
	rules := *s.rules.Load()
	for _, r := range rules {
		if !r.enabled {
			continue
		}
		matched, err := s.evaluator.Evaluate(r.prg, attrs)
		if err != nil {
			continue
		}
		if matched {
			return r.id, true
		}
	}
	return "", false
}
