// Package mlscore defines the ML Score Cache's key derivation and the
// MLClient contract the detection pipeline calls to obtain a score.
package mlscore

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Entry is one cached score, keyed by Fingerprint.
type Entry struct {
	Score float64
	Hit   bool
}

// Fingerprint derives the ML cache key from the request body followed by the
// decoded path+query. xxhash is a non-cryptographic, collision-resistant-enough
// hash appropriate for a cache key (not a security boundary), and is orders
// of magnitude cheaper than SHA-256 on the request hot path.
func Fingerprint(decodedPathAndQuery string, body []byte) string {
	h := xxhash.New()
	_, _ = h.Write(body)
	_, _ = h.WriteString(decodedPathAndQuery)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Client is the outbound port to the external ML scoring service. A score
// is always in [0, 1]; Score must fail open (return Unavailable, not an
// error that stalls the pipeline) whenever the remote service cannot be
// reached within its deadline.
type Client interface {
	Score(ctx context.Context, decodedPathAndQuery string, body []byte) (score float64, unavailable bool, err error)
}

// Cache is the outbound port to the bounded score cache. Implementations
// must evict the entire cache on overflow rather than individual entries
// (LRU or otherwise) — a deliberate simplicity-over-hit-rate tradeoff that
// keeps eviction O(1) and lock-hold time constant regardless of cache size.
type Cache interface {
	Get(fingerprint string) (float64, bool)
	Put(fingerprint string, score float64)
	Len() int
}
