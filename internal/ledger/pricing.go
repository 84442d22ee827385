package ledger

import "github.com/shopspring/decimal"

// PriceMode selects which price field drives the other while entering a batch.
type PriceMode string

const (
	// PriceModeUnit derives the total from quantity times unit price.
	PriceModeUnit PriceMode = "unit"
	// PriceModeTotal derives the unit price from total divided by quantity.
	PriceModeTotal PriceMode = "total"
)

// PriceCalc reconciles unit price and total price bidirectionally. Unit
// prices round to 4 decimal places, totals to 2, matching what the ledger
// persists.
type PriceCalc struct {
	Mode      PriceMode
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// NewPriceCalc starts a calculation in unit-driven mode.
func NewPriceCalc(quantity, unitPrice decimal.Decimal) *PriceCalc {
	c := &PriceCalc{Mode: PriceModeUnit, Quantity: quantity, UnitPrice: unitPrice}
	c.recalc()
	return c
}

// SetMode switches the driving field. The field being edited is left as the
// user typed it; only subsequent edits derive through the new mode.
func (c *PriceCalc) SetMode(mode PriceMode) {
	c.Mode = mode
}

// SetQuantity updates the quantity and re-derives the dependent field under
// the active mode.
func (c *PriceCalc) SetQuantity(q decimal.Decimal) {
	c.Quantity = q
	c.recalc()
}

// SetUnitPrice records a unit price edit. The total follows only when unit
// price is the driving field.
func (c *PriceCalc) SetUnitPrice(p decimal.Decimal) {
	c.UnitPrice = p
	if c.Mode == PriceModeUnit {
		c.recalc()
	}
}

// SetTotal records a total price edit. The unit price follows only when total
// is the driving field.
func (c *PriceCalc) SetTotal(t decimal.Decimal) {
	c.Total = t
	if c.Mode == PriceModeTotal {
		c.recalc()
	}
}

func (c *PriceCalc) recalc() {
	switch c.Mode {
	case PriceModeTotal:
		if c.Quantity.Sign() > 0 {
			c.UnitPrice = c.Total.DivRound(c.Quantity, 4)
		} else {
			c.UnitPrice = decimal.Zero
		}
	default:
		c.Total = c.Quantity.Mul(c.UnitPrice).Round(2)
	}
}
