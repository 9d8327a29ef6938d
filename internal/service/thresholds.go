// Package service wires Vigil's domain and adapter packages into the three
// orchestration flows the inbound handlers depend on but that don't belong
// to any single domain package: live threshold updates, TI lookups, and
// analysis report generation.
package service

import (
	"sync"

	"github.com/vigilwaf/vigil/internal/domain/verdict"
)

// LiveThresholds is a mutable verdict.Thresholds guarded by a mutex, shared
// between the Detection Pipeline (which reads it on every request) and the
// Control Plane's settings endpoint (which updates it). An update that
// would break the ordering invariant is rejected and the prior thresholds
// stay in effect.
type LiveThresholds struct {
	mu sync.RWMutex
	t  verdict.Thresholds
}

// NewLiveThresholds creates a LiveThresholds seeded with initial.
func NewLiveThresholds(initial verdict.Thresholds) *LiveThresholds {
	return &LiveThresholds{t: initial}
}

// Snapshot returns the current thresholds for the pipeline to classify against.
func (l *LiveThresholds) Snapshot() verdict.Thresholds {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.t
}

// Get implements admin.ThresholdsView.
func (l *LiveThresholds) Get() (veryHigh, high, medium, low float64) {
	t := l.Snapshot()
	return t.VeryHigh, t.High, t.Medium, t.Low
}

// Set implements admin.ThresholdsView, rejecting an update that breaks the
// descending-order invariant.
func (l *LiveThresholds) Set(veryHigh, high, medium, low float64) error {
	next := verdict.Thresholds{VeryHigh: veryHigh, High: high, Medium: medium, Low: low}
	if err := next.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t = next
	return nil
}
