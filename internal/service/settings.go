package service

import (
	"fmt"
	"net/url"
	"sync"
)

// SettingsSnapshot is one point-in-time copy of the Control Plane's
// runtime-mutable Settings surface: the upstream and ML-service targets the
// Detection Pipeline forwards to and scores against, plus whether safe
// traffic gets journaled. Kept separate from verdict.Thresholds (see
// LiveThresholds) because the two are read/written independently and only
// the thresholds have domain-level validation of their own.
type SettingsSnapshot struct {
	UpstreamURL    string
	MLServiceURL   string
	LogSafeTraffic bool
}

// LiveSettings is the mutex-guarded, shared-between-pipeline-and-admin
// settings store, mirroring LiveThresholds' Snapshot/Get/Set shape.
type LiveSettings struct {
	mu sync.RWMutex
	s  SettingsSnapshot
}

func NewLiveSettings(initial SettingsSnapshot) *LiveSettings {
	return &LiveSettings{s: initial}
}

func (l *LiveSettings) Snapshot() SettingsSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s
}

func (l *LiveSettings) Get() (upstreamURL, mlServiceURL string, logSafeTraffic bool) {
	s := l.Snapshot()
	return s.UpstreamURL, s.MLServiceURL, s.LogSafeTraffic
}

// Set validates both URLs before installing them; mlServiceURL may be empty
// (ML scoring disabled), but upstreamURL never can be.
func (l *LiveSettings) Set(upstreamURL, mlServiceURL string, logSafeTraffic bool) error {
	if upstreamURL == "" {
		return fmt.Errorf("service: upstream_url is required")
	}
	if _, err := url.Parse(upstreamURL); err != nil {
		return fmt.Errorf("service: invalid upstream_url: %w", err)
	}
	if mlServiceURL != "" {
		if _, err := url.Parse(mlServiceURL); err != nil {
			return fmt.Errorf("service: invalid ml_service_url: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.s = SettingsSnapshot{UpstreamURL: upstreamURL, MLServiceURL: mlServiceURL, LogSafeTraffic: logSafeTraffic}
	return nil
}
