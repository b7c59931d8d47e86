// Package pricing converts token usage into monetary cost using a
// per-model price table.
//
// Prices are expressed per 1,000 tokens, separately for input and output.
// A model that is absent from the table costs zero; callers that require
// complete coverage should check the table before use.
//
// Tables can be built in code or loaded from YAML:
//
//	gpt-4o-mini:
//	  currency: USD
//	  pricePer1KInput: 0.00015
//	  pricePer1KOutput: 0.0006
package pricing
