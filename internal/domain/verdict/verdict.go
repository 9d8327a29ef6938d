// Package verdict turns a signature match and/or an ML score into a final
// record.Verdict using the ordered four-threshold ladder.
package verdict

import (
	"fmt"

	"github.com/vigilwaf/vigil/internal/domain/record"
)

// Band names the rung of the threshold ladder a score landed on.
type Band string

const (
	BandVeryHigh Band = "very high"
	BandHigh     Band = "high"
	BandMedium   Band = "medium"
	BandLow      Band = "low"
	BandSafe     Band = "safe"
)

// Thresholds is the ordered four-float ladder: VeryHigh >= High >= Medium
// >= Low, each in [0,1]. Mutable at runtime through the Control Plane; an
// update that would break the ordering must be rejected, leaving the prior
// thresholds in effect.
type Thresholds struct {
	VeryHigh float64
	High     float64
	Medium   float64
	Low      float64
}

// Validate enforces the ordering invariant. Equal adjacent thresholds are
// permitted (">=", not ">") since the spec states the ladder non-strictly.
func (t Thresholds) Validate() error {
	if !(t.VeryHigh >= t.High && t.High >= t.Medium && t.Medium >= t.Low) {
		return fmt.Errorf("verdict: thresholds must satisfy very_high >= high >= medium >= low, got %.3f/%.3f/%.3f/%.3f",
			t.VeryHigh, t.High, t.Medium, t.Low)
	}
	for _, v := range []float64{t.VeryHigh, t.High, t.Medium, t.Low} {
		if v < 0 || v > 1 {
			return fmt.Errorf("verdict: thresholds must fall within [0,1], got %.3f", v)
		}
	}
	return nil
}

// Classify decides the final verdict for a request. A signature hit blocks
// outright and short-circuits ML classification entirely — a matched
// signature is a higher-confidence signal than a learned score, and the
// spec's end-to-end scenarios never run ML after a signature hit.
func Classify(t Thresholds, signatureID string, mlScore float64) (record.Verdict, Band) {
	if signatureID != "" {
		return record.VerdictBlocked, BandVeryHigh
	}
	switch {
	case mlScore >= t.VeryHigh:
		return record.VerdictBlocked, BandVeryHigh
	case mlScore >= t.High:
		return record.VerdictBlocked, BandHigh
	case mlScore >= t.Medium:
		return record.VerdictAlert, BandMedium
	case mlScore >= t.Low:
		return record.VerdictLogged, BandLow
	default:
		return record.VerdictSafe, BandSafe
	}
}

// ReasonForSignature formats the Record.Reason string for a signature block.
func ReasonForSignature(signatureID string) string {
	return "SIG:" + signatureID
}

// ReasonForScore formats the Record.Reason string for an ML-driven verdict.
func ReasonForScore(score float64, band Band) string {
	return fmt.Sprintf("ML:%.4f (%s)", score, band)
}
