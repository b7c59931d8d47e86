package tokens

import (
	"strings"
	"unicode/utf8"
)

// Estimator converts text to an approximate token count.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Estimate must not panic; empty text yields 0.
type Estimator interface {
	Estimate(text string) int
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func(text string) int

// Estimate calls f(text).
func (f EstimatorFunc) Estimate(text string) int {
	return f(text)
}

// Heuristic is the dependency-free default estimator.
type Heuristic struct{}

// Estimate returns max(1, ceil(cjk/1.5) + ceil(other/4)) for non-blank text.
func (Heuristic) Estimate(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	total := utf8.RuneCountInString(trimmed)
	cjk := 0
	for _, r := range trimmed {
		if isCJK(r) {
			cjk++
		}
	}
	other := total - cjk

	// ceil(cjk / 1.5) == ceil(2*cjk / 3)
	estCJK := (2*cjk + 2) / 3
	estOther := (other + 3) / 4

	return max(1, estCJK+estOther)
}

// isCJK reports whether r falls in the kana or CJK ideograph ranges.
func isCJK(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x30ff: // hiragana, katakana
		return true
	case r >= 0x3400 && r <= 0x4dbf: // extension A
		return true
	case r >= 0x4e00 && r <= 0x9fff: // unified ideographs
		return true
	}
	return false
}

// Default is the estimator used when none is configured.
var Default Estimator = Heuristic{}

// Estimate estimates text with the Heuristic estimator.
func Estimate(text string) int {
	return Heuristic{}.Estimate(text)
}

// Or returns e, or Default when e is nil.
func Or(e Estimator) Estimator {
	if e == nil {
		return Default
	}
	return e
}

// Ensure Heuristic implements Estimator
var _ Estimator = Heuristic{}
