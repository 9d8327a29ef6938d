package ratelimit

import "context"

// Limiter is a true sliding-window counter: it tracks individual event
// timestamps per key and admits an event only if fewer than Limit timestamps
// fall within the trailing Window, matching the reference rate limiter's
// exact admit/deny semantics rather than a token-bucket approximation.
//
// The interface is storage-agnostic so it can be backed by an in-memory
// implementation (the only one Vigil ships) or, in principle, a shared
// external store.
type Limiter interface {
	// Allow records an event attempt for key under config and reports
	// whether it is admitted.
	Allow(ctx context.Context, key string, config Config) (Result, error)
}
