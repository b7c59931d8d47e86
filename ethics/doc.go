// Package ethics scores traces for transparency and renders compliance
// reports.
//
// The transparency score rewards clear output and penalizes detected PII,
// normalized by token volume:
//
//	T = (Σ clarity·outputTokens·Wc − Σ piiCount·1000·Wp) / max(1, tokens)
//
// Clarity is a bounded text heuristic in [0,1]. PII counts come from the
// safety record on each span when present, otherwise from a fresh scan.
// All signals are heuristic; a score is a prompt for review, not a verdict.
package ethics
