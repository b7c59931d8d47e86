// Package tokens estimates token counts for prompt and completion text.
//
// Counting is approximate by design. The default Heuristic blends a CJK rate
// (about 1.5 characters per token) with a Latin rate (about 4 characters per
// token). Callers that need exact counts inject their own Estimator, for
// example one backed by a model-specific tokenizer.
package tokens
