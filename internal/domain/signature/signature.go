// Package signature holds the Signature Rule type and the matching engine
// that scans a request's decoded path, query, and body against the static
// rule set loaded from YAML.
package signature

import (
	"fmt"
	"net/url"
	"regexp"
	"sync"
)

// Rule is one signature: a compiled regex tested against a normalized view
// of the request, and a runtime enabled flag an operator can toggle through
// the Control Plane without reloading the YAML file.
type Rule struct {
	ID          string `yaml:"id"`
	Pattern     string `yaml:"regex"`
	Description string `yaml:"description"`

	compiled *regexp.Regexp
}

// Document is the static signature file's top-level shape.
type Document struct {
	Signatures []Rule `yaml:"signatures"`
}

// Engine holds the compiled static rule set plus a mutable enabled-state map,
// guarded by an RWMutex since toggles come from the Control Plane's admin
// goroutine while Scan runs concurrently on every request goroutine.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	enabled map[string]bool
}

// NewEngine compiles every rule in doc and enables all of them by default.
func NewEngine(doc Document) (*Engine, error) {
	e := &Engine{enabled: make(map[string]bool, len(doc.Signatures))}
	for _, r := range doc.Signatures {
		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("signature %s: compile regex: %w", r.ID, err)
		}
		r.compiled = compiled
		e.rules = append(e.rules, r)
		e.enabled[r.ID] = true
	}
	return e, nil
}

// SetEnabled toggles a rule on or off. Unknown ids are a no-op.
func (e *Engine) SetEnabled(id string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.enabled[id]; ok {
		e.enabled[id] = on
	}
}

// RuleView is a read-only snapshot of one static signature's current state,
// for the Control Plane's rules listing endpoint.
type RuleView struct {
	ID          string
	Pattern     string
	Description string
	Enabled     bool
}

// List returns a snapshot of every static rule in declaration order.
func (e *Engine) List() []RuleView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RuleView, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, RuleView{ID: r.ID, Pattern: r.Pattern, Description: r.Description, Enabled: e.enabled[r.ID]})
	}
	return out
}

// Match is a single scan hit: which rule fired and against what surface.
type Match struct {
	SignatureID string
	Surface     string // "path", "query", or "body"
}

// Scan tests path, the raw query string, and the request body against every
// enabled rule, in declaration order, and returns on the first hit. Path and
// query are URL-decoded before matching so percent-encoded payloads cannot
// evade a regex written against the literal attack string; decoding failures
// fall back to the raw value rather than aborting the scan.
func (e *Engine) Scan(path, rawQuery string, body []byte) (Match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	decodedPath := decodeOrRaw(path)
	decodedQuery := decodeOrRaw(rawQuery)
	bodyText := string(body)

	for _, r := range e.rules {
		if !e.enabled[r.ID] {
			continue
		}
		if r.compiled.MatchString(decodedPath) {
			return Match{SignatureID: r.ID, Surface: "path"}, true
		}
		if r.compiled.MatchString(decodedQuery) {
			return Match{SignatureID: r.ID, Surface: "query"}, true
		}
		if r.compiled.MatchString(bodyText) {
			return Match{SignatureID: r.ID, Surface: "body"}, true
		}
	}
	return Match{}, false
}

func decodeOrRaw(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
