package pii

import "regexp"

// Type is a PII detector category.
type Type string

// Detector categories, in rule order.
const (
	Email      Type = "email"
	Phone      Type = "phone"
	CreditCard Type = "credit_card"
	SSN        Type = "ssn"
	IPAddress  Type = "ip_address"
	APIKey     Type = "api_key"
)

// Rule pairs a category with the pattern that detects it.
type Rule struct {
	Type  Type
	Regex *regexp.Regexp
}

var rules = []Rule{
	{Type: Email, Regex: regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)},
	// Permissive international-ish phone number.
	{Type: Phone, Regex: regexp.MustCompile(`(\+?\d{1,3}[\s-]?)?(\(?\d{2,4}\)?[\s-]?)?\d{3,4}[\s-]?\d{4}`)},
	// Loose digit run; no Luhn check.
	{Type: CreditCard, Regex: regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)},
	{Type: SSN, Regex: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{Type: IPAddress, Regex: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{Type: APIKey, Regex: regexp.MustCompile(`\b(sk-[A-Za-z0-9]{16,}|AKIA[0-9A-Z]{16})\b`)},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// highSensitivity lists categories that alone make a text high risk.
var highSensitivity = map[Type]bool{
	CreditCard: true,
	SSN:        true,
	APIKey:     true,
}
