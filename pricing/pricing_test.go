package pricing

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

func TestCompute(t *testing.T) {
	table := Table{"m": {PricePer1KInput: 0.001, PricePer1KOutput: 0.002}}
	c := Compute("m", 1000, 500, table)

	if c.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", c.Currency)
	}
	if !approx(c.Input, 0.001) || !approx(c.Output, 0.001) || !approx(c.Total, 0.002) {
		t.Errorf("unexpected cost: %+v", c)
	}
	if c.PricePer1KInput == nil || *c.PricePer1KInput != 0.001 {
		t.Errorf("PricePer1KInput = %v", c.PricePer1KInput)
	}
	if c.PricePer1KOutput == nil || *c.PricePer1KOutput != 0.002 {
		t.Errorf("PricePer1KOutput = %v", c.PricePer1KOutput)
	}
}

func TestCompute_Currency(t *testing.T) {
	table := Table{"m": {Currency: "EUR", PricePer1KInput: 1}}
	if c := Compute("m", 1, 0, table); c.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", c.Currency)
	}
}

func TestCompute_Missing(t *testing.T) {
	table := Table{"m": {PricePer1KInput: 1, PricePer1KOutput: 1}}
	tests := []struct {
		name  string
		model string
		table Table
	}{
		{"unknown model", "other", table},
		{"empty model", "", table},
		{"nil table", "m", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compute(tt.model, 100, 100, tt.table)
			if c.Currency != DefaultCurrency || c.Total != 0 || c.Input != 0 || c.Output != 0 {
				t.Errorf("expected zero cost, got %+v", c)
			}
			if c.PricePer1KInput != nil || c.PricePer1KOutput != nil {
				t.Errorf("expected no unit prices, got %+v", c)
			}
		})
	}
}

func TestTable_Validate(t *testing.T) {
	if err := (Table{"ok": {PricePer1KInput: 0.1}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := (Table{"bad": {PricePer1KOutput: -1}}).Validate()
	if !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	err = (Table{"nan": {PricePer1KInput: math.NaN()}}).Validate()
	if !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for NaN, got %v", err)
	}
}

func TestLoadTable(t *testing.T) {
	src := `
gpt-4o-mini:
  currency: USD
  pricePer1KInput: 0.00015
  pricePer1KOutput: 0.0006
local:
  pricePer1KInput: 0
  pricePer1KOutput: 0
`
	table, err := LoadTable(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(table))
	}
	if p := table["gpt-4o-mini"]; p.PricePer1KOutput != 0.0006 {
		t.Errorf("unexpected price: %+v", p)
	}
}

func TestLoadTable_Invalid(t *testing.T) {
	if _, err := LoadTable(strings.NewReader("m:\n  pricePer1KInput: -2\n")); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := LoadTable(strings.NewReader("m: [")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadTable_Empty(t *testing.T) {
	table, err := LoadTable(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table == nil || len(table) != 0 {
		t.Errorf("expected empty table, got %v", table)
	}
}
