package pricing

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultCurrency is used when a price entry names no currency.
const DefaultCurrency = "USD"

// Price is the per-1K-token price of a model.
type Price struct {
	Currency         string  `json:"currency,omitempty" yaml:"currency,omitempty"`
	PricePer1KInput  float64 `json:"pricePer1KInput" yaml:"pricePer1KInput"`
	PricePer1KOutput float64 `json:"pricePer1KOutput" yaml:"pricePer1KOutput"`
}

// Table maps model identifiers to prices.
type Table map[string]Price

// Cost is the computed spend of one call.
type Cost struct {
	Currency         string   `json:"currency"`
	Total            float64  `json:"total"`
	Input            float64  `json:"input"`
	Output           float64  `json:"output"`
	PricePer1KInput  *float64 `json:"pricePer1KInput,omitempty"`
	PricePer1KOutput *float64 `json:"pricePer1KOutput,omitempty"`
}

// Compute prices a call. Missing model, missing table or missing entry
// yield a zero cost in DefaultCurrency.
func Compute(model string, inputTokens, outputTokens int, table Table) Cost {
	price, ok := table.Lookup(model)
	if !ok {
		return Cost{Currency: DefaultCurrency}
	}

	currency := price.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	in := float64(max(0, inputTokens)) / 1000 * price.PricePer1KInput
	out := float64(max(0, outputTokens)) / 1000 * price.PricePer1KOutput
	pIn, pOut := price.PricePer1KInput, price.PricePer1KOutput

	return Cost{
		Currency:         currency,
		Total:            in + out,
		Input:            in,
		Output:           out,
		PricePer1KInput:  &pIn,
		PricePer1KOutput: &pOut,
	}
}

// Lookup returns the price for model. A nil table or empty model never
// matches.
func (t Table) Lookup(model string) (Price, bool) {
	if t == nil || model == "" {
		return Price{}, false
	}
	p, ok := t[model]
	return p, ok
}

// Validate rejects negative or non-finite prices.
func (t Table) Validate() error {
	models := make([]string, 0, len(t))
	for m := range t {
		models = append(models, m)
	}
	sort.Strings(models)

	for _, m := range models {
		p := t[m]
		for _, v := range []float64{p.PricePer1KInput, p.PricePer1KOutput} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: model %q", ErrInvalidPrice, m)
			}
		}
	}
	return nil
}

// LoadTable decodes a YAML price table and validates it.
func LoadTable(r io.Reader) (Table, error) {
	var t Table
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		if err == io.EOF {
			return Table{}, nil
		}
		return nil, fmt.Errorf("pricing: decode table: %w", err)
	}
	if t == nil {
		t = Table{}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
