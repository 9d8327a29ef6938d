package verdict

import (
	"testing"

	"github.com/vigilwaf/vigil/internal/domain/record"
)

func defaultThresholds() Thresholds {
	return Thresholds{VeryHigh: 0.9, High: 0.75, Medium: 0.5, Low: 0.25}
}

func TestValidateRejectsBrokenOrdering(t *testing.T) {
	th := Thresholds{VeryHigh: 0.6, High: 0.8, Medium: 0.5, Low: 0.2}
	if err := th.Validate(); err == nil {
		t.Fatalf("expected error for broken ordering")
	}
}

func TestValidateAcceptsEqualAdjacentThresholds(t *testing.T) {
	th := Thresholds{VeryHigh: 0.8, High: 0.8, Medium: 0.5, Low: 0.5}
	if err := th.Validate(); err != nil {
		t.Fatalf("expected equal adjacent thresholds to be valid: %v", err)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	th := Thresholds{VeryHigh: 1.5, High: 0.8, Medium: 0.5, Low: 0.2}
	if err := th.Validate(); err == nil {
		t.Fatalf("expected error for out-of-range threshold")
	}
}

func TestClassifySignatureHitAlwaysBlocksVeryHigh(t *testing.T) {
	v, band := Classify(defaultThresholds(), "SQLI_UNION_SELECT", 0.0)
	if v != record.VerdictBlocked || band != BandVeryHigh {
		t.Fatalf("got verdict=%s band=%s", v, band)
	}
}

func TestClassifyScoreLadder(t *testing.T) {
	th := defaultThresholds()
	cases := []struct {
		score float64
		want  record.Verdict
	}{
		{0.9, record.VerdictBlocked},
		{0.75, record.VerdictBlocked},
		{0.74, record.VerdictAlert},
		{0.5, record.VerdictAlert},
		{0.49, record.VerdictLogged},
		{0.25, record.VerdictLogged},
		{0.24, record.VerdictSafe},
		{0.0, record.VerdictSafe},
	}
	for _, c := range cases {
		got, _ := Classify(th, "", c.score)
		if got != c.want {
			t.Errorf("score=%.2f: got %s want %s", c.score, got, c.want)
		}
	}
}

func TestReasonFormatting(t *testing.T) {
	if got := ReasonForSignature("SQLI_UNION_SELECT"); got != "SIG:SQLI_UNION_SELECT" {
		t.Fatalf("got %q", got)
	}
	if got := ReasonForScore(0.92, BandVeryHigh); got != "ML:0.9200 (very high)" {
		t.Fatalf("got %q", got)
	}
}
