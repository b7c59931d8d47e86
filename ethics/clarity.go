package ethics

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	structureRe = regexp.MustCompile(`\n- |\n\d+\. |\n\* `)
	refusalRe   = regexp.MustCompile(`(?i)\b(can't|cannot|won't|unable to)\b`)
)

// Clarity signal weights.
const (
	clarityBase      = 0.35
	structureBonus   = 0.25
	punctuationBonus = 0.15
	codeFenceBonus   = 0.10
	lengthBonus      = 0.15
	refusalPenalty   = 0.20
	maxNoisePenalty  = 0.25

	// longText is the character count that earns lengthBonus.
	longText = 120
)

// Clarity scores how readable text is, in [0,1]. Blank text scores 0.
//
// Structured lists, terminal punctuation, fenced code and length add to
// a 0.35 base; refusal phrasing and a high share of symbol characters
// subtract from it.
func Clarity(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	n := utf8.RuneCountInString(t)

	score := clarityBase
	if structureRe.MatchString("\n" + t) {
		score += structureBonus
	}
	if strings.ContainsAny(t, ".!?。！？") {
		score += punctuationBonus
	}
	if strings.Contains(t, "```") {
		score += codeFenceBonus
	}
	if n >= longText {
		score += lengthBonus
	}
	if refusalRe.MatchString(t) {
		score -= refusalPenalty
	}

	noise := 0
	for _, r := range t {
		if !isWordRune(r) {
			noise++
		}
	}
	score -= min(maxNoisePenalty, float64(noise)/float64(n))

	return max(0, min(1, score))
}

// isWordRune reports ASCII letters and digits, kana, CJK ideographs and
// whitespace.
func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 0x3040 && r <= 0x30ff, r >= 0x3400 && r <= 0x4dbf, r >= 0x4e00 && r <= 0x9fff:
		return true
	}
	return unicode.IsSpace(r)
}
