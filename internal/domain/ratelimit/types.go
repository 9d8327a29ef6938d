// Package ratelimit provides the sliding-window rate limiting domain types
// shared by the TI provider limiters and the Analysis Service's request cap.
package ratelimit

import (
	"fmt"
	"time"
)

// Config defines a sliding window: at most Limit events may occur within
// any Window-long trailing interval.
type Config struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of a single Allow check.
type Result struct {
	Allowed bool

	// Remaining is how many more events are allowed within the current window.
	Remaining int

	// RetryAfter is how long the caller should wait before the next event
	// would be allowed. Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// KeyType identifies the dimension a rate limit key is scoped to.
type KeyType string

const (
	KeyTypeIP       KeyType = "ip"
	KeyTypeProvider KeyType = "provider"
	KeyTypeClient   KeyType = "client"
)

const keyPrefix = "ratelimit"

// FormatKey returns a structured rate limit key: "ratelimit:{type}:{value}".
func FormatKey(keyType KeyType, value string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, keyType, value)
}
