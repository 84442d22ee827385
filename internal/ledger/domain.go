package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for purchase and withdrawal dates. FIFO
// ordering compares these strings lexicographically, which is only sound for a
// fixed-width zero-padded layout, so anything else is rejected at the door.
const DateLayout = "2006-01-02"

// Batch is one inventory lot: a quantity of a named item received on a
// specific date at a specific unit price. Batches emptied by withdrawals stay
// in the ledger with quantity zero.
type Batch struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Quantity     decimal.Decimal   `json:"quantity"`
	Price        decimal.Decimal   `json:"price"`
	PurchaseDate string            `json:"purchaseDate"`
	CustomValues map[string]string `json:"customValues,omitempty"`
	Created      time.Time         `json:"created,omitempty"`
	Updated      time.Time         `json:"updated,omitempty"`
}

// TotalValue returns quantity times unit price for this batch.
func (b Batch) TotalValue() decimal.Decimal {
	return b.Quantity.Mul(b.Price)
}

// WithdrawalRecord is the immutable audit entry of one completed stock-out.
// TotalCost is frozen at withdrawal time and never recomputed, even if batch
// prices are edited later.
type WithdrawalRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	TotalCost decimal.Decimal `json:"totalCost"`
	Date      string          `json:"date"`
	Notes     string          `json:"notes,omitempty"`
	Created   time.Time       `json:"created,omitempty"`
}

// PlanLine records the consumption of one batch segment within a plan.
type PlanLine struct {
	BatchID  string          `json:"batchId"`
	Used     decimal.Decimal `json:"used"`
	LineCost decimal.Decimal `json:"lineCost"`
}

// Plan is the depletion plan for one withdrawal: which batches are drawn
// down, by how much, and what the withdrawal costs in total.
type Plan struct {
	Lines     []PlanLine      `json:"lines"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// BatchInput carries fields for creating or updating a batch.
type BatchInput struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name" validate:"required"`
	Quantity     decimal.Decimal   `json:"quantity"`
	UnitPrice    decimal.Decimal   `json:"unitPrice"`
	PurchaseDate string            `json:"purchaseDate" validate:"required"`
	CustomValues map[string]string `json:"customValues"`
	Actor        string            `json:"-"`
}

// WithdrawalInput describes a requested stock-out.
type WithdrawalInput struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Date     string          `json:"date" validate:"required"`
	Notes    string          `json:"notes"`
	Actor    string          `json:"-"`
}

// GroupedItem aggregates every batch sharing a name. Derived on each load,
// never persisted.
type GroupedItem struct {
	Name          string          `json:"name"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	BatchCount    int             `json:"batchCount"`
	Batches       []Batch         `json:"batches"`
	LatestPrice   decimal.Decimal `json:"latestPrice"`
}

// AveragePrice returns TotalValue / TotalQuantity, or zero for an empty group.
func (g GroupedItem) AveragePrice() decimal.Decimal {
	if g.TotalQuantity.Sign() <= 0 {
		return decimal.Zero
	}
	return g.TotalValue.DivRound(g.TotalQuantity, 4)
}

// InsufficientStockError reports a withdrawal that exceeds the total
// available quantity. It is raised before any mutation is attempted.
type InsufficientStockError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock: available %s, requested %s", e.Available, e.Requested)
}

// ErrInvalidQuantity indicates a non-positive withdrawal quantity or a
// negative batch quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrInvalidDate indicates a date outside the YYYY-MM-DD layout.
var ErrInvalidDate = errors.New("ledger: date must be formatted YYYY-MM-DD")

// ErrUnknownItem indicates a withdrawal target with no batches on record.
var ErrUnknownItem = errors.New("ledger: item not present in inventory")

// ErrBatchNotFound indicates a missing batch row.
var ErrBatchNotFound = errors.New("ledger: batch not found")

// ValidDate reports whether s parses under DateLayout.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
