// Package pii detects, redacts and reports personally identifiable
// information in free text.
//
// Detection is a fixed, ordered table of regular expressions (email, phone,
// credit-card-like digit runs, SSN-like triples, IPv4-like quads and
// API-key-like prefixed tokens). It is a heuristic signal that produces false
// positives and misses real PII; treat its output as advisory, never as a
// compliance verdict.
//
// # Redaction modes
//
//   - ModeMask replaces every match with [REDACTED:<type>].
//   - ModeHash replaces every match with [REDACTED:<type>:<hash>], where hash
//     is a stable short hash of the matched text. Equal values correlate
//     without exposing the value.
//   - ModeNone leaves text untouched.
package pii
