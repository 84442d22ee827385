package ledger

import "testing"

func TestPriceCalcUnitMode(t *testing.T) {
	c := NewPriceCalc(dec("4"), dec("3"))
	if !c.Total.Equal(dec("12.00")) {
		t.Fatalf("total = %s, want 12.00", c.Total)
	}
	c.SetUnitPrice(dec("2.5"))
	if !c.Total.Equal(dec("10.00")) {
		t.Fatalf("total after price edit = %s, want 10.00", c.Total)
	}
	c.SetQuantity(dec("3"))
	if !c.Total.Equal(dec("7.50")) {
		t.Fatalf("total after quantity edit = %s, want 7.50", c.Total)
	}
}

func TestPriceCalcTotalMode(t *testing.T) {
	c := NewPriceCalc(dec("4"), dec("0"))
	c.SetMode(PriceModeTotal)
	c.SetTotal(dec("10"))
	if !c.UnitPrice.Equal(dec("2.5000")) {
		t.Fatalf("unit price = %s, want 2.5000", c.UnitPrice)
	}
	c.SetQuantity(dec("3"))
	if !c.UnitPrice.Equal(dec("3.3333")) {
		t.Fatalf("unit price after quantity edit = %s, want 3.3333", c.UnitPrice)
	}
}

func TestPriceCalcModeSwitchDoesNotRederive(t *testing.T) {
	c := NewPriceCalc(dec("4"), dec("3"))
	c.SetMode(PriceModeTotal)
	// Switching modes keeps both fields as they stand.
	if !c.UnitPrice.Equal(dec("3")) || !c.Total.Equal(dec("12.00")) {
		t.Fatalf("mode switch mutated fields: unit=%s total=%s", c.UnitPrice, c.Total)
	}
	// Editing the non-driving field leaves the driving field alone.
	c.SetUnitPrice(dec("99"))
	if !c.Total.Equal(dec("12.00")) {
		t.Fatalf("total moved on non-driving edit: %s", c.Total)
	}
}

func TestPriceCalcZeroQuantity(t *testing.T) {
	c := NewPriceCalc(dec("0"), dec("5"))
	if !c.Total.IsZero() {
		t.Fatalf("total with zero quantity = %s, want 0", c.Total)
	}
	c.SetMode(PriceModeTotal)
	c.SetTotal(dec("10"))
	if !c.UnitPrice.IsZero() {
		t.Fatalf("unit price with zero quantity = %s, want 0", c.UnitPrice)
	}
}
