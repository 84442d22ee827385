package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PlanWithdrawal computes the FIFO depletion plan for one item. It is a pure
// planning step: batches are not mutated, so a failed plan leaves nothing to
// roll back and the caller may retry freely.
//
// Batches are consumed oldest purchase date first; same-date batches keep
// their input order. Batches already at zero are skipped and left untouched.
func PlanWithdrawal(batches []Batch, requested decimal.Decimal) (Plan, error) {
	if requested.Sign() <= 0 {
		return Plan{}, ErrInvalidQuantity
	}
	for _, b := range batches {
		if !ValidDate(b.PurchaseDate) {
			return Plan{}, ErrInvalidDate
		}
	}

	ordered := make([]Batch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PurchaseDate < ordered[j].PurchaseDate
	})

	available := decimal.Zero
	for _, b := range ordered {
		available = available.Add(b.Quantity)
	}
	if available.LessThan(requested) {
		return Plan{}, &InsufficientStockError{Available: available, Requested: requested}
	}

	plan := Plan{TotalCost: decimal.Zero}
	remaining := requested
	for _, b := range ordered {
		if remaining.Sign() <= 0 {
			break
		}
		if b.Quantity.Sign() <= 0 {
			continue
		}
		used := b.Quantity
		if used.GreaterThan(remaining) {
			used = remaining
		}
		lineCost := used.Mul(b.Price)
		plan.Lines = append(plan.Lines, PlanLine{BatchID: b.ID, Used: used, LineCost: lineCost.Round(2)})
		plan.TotalCost = plan.TotalCost.Add(lineCost)
		remaining = remaining.Sub(used)
	}
	plan.TotalCost = plan.TotalCost.Round(2)
	return plan, nil
}

// Apply returns the batches with the plan's consumption subtracted. Exhausted
// batches end at exactly zero; batches outside the plan are returned as-is.
func (p Plan) Apply(batches []Batch) []Batch {
	used := make(map[string]decimal.Decimal, len(p.Lines))
	for _, line := range p.Lines {
		used[line.BatchID] = line.Used
	}
	out := make([]Batch, len(batches))
	for i, b := range batches {
		if u, ok := used[b.ID]; ok {
			b.Quantity = b.Quantity.Sub(u)
		}
		out[i] = b
	}
	return out
}
