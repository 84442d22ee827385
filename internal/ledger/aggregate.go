package ledger

import (
	"sort"
	"strings"
)

// Aggregate folds a flat batch collection into per-name groups. Pure and
// total: permuting the input changes nothing except the display order of each
// group's batch list, which is fixed afterwards by sorting.
func Aggregate(batches []Batch) map[string]GroupedItem {
	groups := make(map[string]GroupedItem)
	for _, b := range batches {
		g, ok := groups[b.Name]
		if !ok {
			g = GroupedItem{Name: b.Name}
		}
		g.TotalQuantity = g.TotalQuantity.Add(b.Quantity)
		g.TotalValue = g.TotalValue.Add(b.Quantity.Mul(b.Price))
		g.BatchCount++
		g.Batches = append(g.Batches, b)
		groups[b.Name] = g
	}
	for name, g := range groups {
		// Most recent batch first for display; ties keep insertion order.
		sort.SliceStable(g.Batches, func(i, j int) bool {
			return g.Batches[i].PurchaseDate > g.Batches[j].PurchaseDate
		})
		if len(g.Batches) > 0 {
			g.LatestPrice = g.Batches[0].Price
		}
		groups[name] = g
	}
	return groups
}

// MatchQuery reports whether the group matches a search query: the query is a
// case-insensitive substring of the group name, or of the string form of any
// custom value on any of its batches. An empty query matches everything.
func MatchQuery(g GroupedItem, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(g.Name), q) {
		return true
	}
	for _, b := range g.Batches {
		for _, v := range b.CustomValues {
			if strings.Contains(strings.ToLower(v), q) {
				return true
			}
		}
	}
	return false
}

// SortedGroups returns the groups ordered by total quantity descending, name
// ascending on ties. Reports and the overview listing share this order.
func SortedGroups(groups map[string]GroupedItem) []GroupedItem {
	out := make([]GroupedItem, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalQuantity.Equal(out[j].TotalQuantity) {
			return out[i].TotalQuantity.GreaterThan(out[j].TotalQuantity)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
