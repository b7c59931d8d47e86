package pii

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Mode selects how matches are rewritten by Redact.
type Mode string

const (
	ModeMask Mode = "mask"
	ModeHash Mode = "hash"
	ModeNone Mode = "none"
)

// ParseMode parses a mode name. Empty selects ModeMask.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeMask:
		return ModeMask, nil
	case ModeHash:
		return ModeHash, nil
	case ModeNone:
		return ModeNone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Finding aggregates the matches of one category within a scanned text.
type Finding struct {
	Type  Type `json:"type"`
	Count int  `json:"count"`
}

// Scan counts matches per category. Zero-count categories are omitted and
// the result follows rule order.
func Scan(text string) []Finding {
	findings := []Finding{}
	if text == "" {
		return findings
	}
	for _, rule := range rules {
		if n := len(rule.Regex.FindAllStringIndex(text, -1)); n > 0 {
			findings = append(findings, Finding{Type: rule.Type, Count: n})
		}
	}
	return findings
}

// Total sums the counts of findings.
func Total(findings []Finding) int {
	total := 0
	for _, f := range findings {
		total += f.Count
	}
	return total
}

// Redact rewrites every match with a category-tagged marker. Rules are
// applied in order, so later rules see the output of earlier ones.
func Redact(text string, mode Mode) string {
	if text == "" || mode == ModeNone {
		return text
	}
	out := text
	for _, rule := range rules {
		out = rule.Regex.ReplaceAllStringFunc(out, func(m string) string {
			return marker(rule.Type, m, mode)
		})
	}
	return out
}

func marker(t Type, match string, mode Mode) string {
	if mode == ModeHash {
		return "[REDACTED:" + string(t) + ":" + hashString(match) + "]"
	}
	return "[REDACTED:" + string(t) + "]"
}

// hashString is a 31-multiplier rolling hash over UTF-16 code units,
// rendered as lowercase hex.
func hashString(s string) string {
	var h uint32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + uint32(u)
	}
	return strconv.FormatUint(uint64(h), 16)
}

// maskPreview keeps two characters at each end and stars the middle.
func maskPreview(s string) string {
	const visible = 2
	r := []rune(s)
	n := len(r)
	if n <= visible*2 {
		return strings.Repeat("*", min(12, n))
	}
	return string(r[:visible]) + strings.Repeat("*", min(12, n-visible*2)) + string(r[n-visible:])
}

func maskText(text string) string {
	out := text
	for _, rule := range rules {
		out = rule.Regex.ReplaceAllStringFunc(out, maskPreview)
	}
	return out
}

// Field names the span payload a piece of evidence was found in.
type Field string

const (
	FieldPrompt Field = "prompt"
	FieldOutput Field = "output"
)

// Evidence is one detected occurrence, with masked and redacted context for
// audit review. Start and End are character offsets into the scanned text.
type Evidence struct {
	Field         Field  `json:"field"`
	Type          Type   `json:"type"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Before        string `json:"before"`
	After         string `json:"after"`
	ContextBefore string `json:"contextBefore"`
	ContextAfter  string `json:"contextAfter"`
}

// EvidenceOptions tunes CollectEvidence.
type EvidenceOptions struct {
	// Mode is the redaction mode for After and ContextAfter. Default: ModeMask.
	Mode Mode

	// IncludeRawMatch keeps the raw match in Before and ContextBefore
	// instead of a masked preview. Default: false.
	IncludeRawMatch bool

	// ContextChars is the window on each side of a match. Default: 24.
	ContextChars int

	// MaxItems caps the number of records. Default: 50.
	MaxItems int
}

// Default evidence limits.
const (
	DefaultContextChars = 24
	DefaultMaxItems     = 50
)

func (o EvidenceOptions) withDefaults() EvidenceOptions {
	if o.Mode == "" {
		o.Mode = ModeMask
	}
	if o.ContextChars <= 0 {
		o.ContextChars = DefaultContextChars
	}
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	return o
}

// CollectEvidence returns per-occurrence records, first-match-first across
// categories in rule order, bounded by opts.MaxItems.
func CollectEvidence(text string, field Field, opts EvidenceOptions) []Evidence {
	if text == "" {
		return nil
	}
	opts = opts.withDefaults()
	runes := []rune(text)

	var out []Evidence
	for _, rule := range rules {
		if len(out) >= opts.MaxItems {
			break
		}
		for _, loc := range rule.Regex.FindAllStringIndex(text, -1) {
			if len(out) >= opts.MaxItems {
				break
			}
			raw := text[loc[0]:loc[1]]
			if raw == "" {
				continue
			}
			start := utf8.RuneCountInString(text[:loc[0]])
			end := start + utf8.RuneCountInString(raw)

			left := max(0, start-opts.ContextChars)
			right := min(len(runes), end+opts.ContextChars)
			snippet := string(runes[left:right])

			ev := Evidence{
				Field:        field,
				Type:         rule.Type,
				Start:        start,
				End:          end,
				After:        marker(rule.Type, raw, opts.Mode),
				ContextAfter: Redact(snippet, opts.Mode),
			}
			if opts.IncludeRawMatch {
				ev.Before = raw
				ev.ContextBefore = snippet
			} else {
				ev.Before = maskPreview(raw)
				ev.ContextBefore = maskText(snippet)
			}
			out = append(out, ev)
		}
	}
	return out
}
