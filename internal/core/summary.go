package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   decimal.Decimal
}

// Totals sums amounts per category in Categories() order. Expenses with an
// empty or unknown category count as CategoryOther; zero totals are dropped.
func Totals(items []Expense) []CategoryAmount {
	sums := make(map[Category]decimal.Decimal, 4)
	for _, e := range items {
		c := e.Category.Normalize()
		if !isKnown(c) {
			c = CategoryOther
		}
		sums[c] = sums[c].Add(e.Amount)
	}

	out := make([]CategoryAmount, 0, len(sums))
	for _, c := range Categories() {
		if s, ok := sums[c]; ok && !s.IsZero() {
			out = append(out, CategoryAmount{Category: c, Amount: s})
		}
	}
	return out
}

// Sum returns the total amount of items.
func Sum(items []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range items {
		total = total.Add(e.Amount)
	}
	return total
}

func isKnown(c Category) bool {
	for _, k := range Categories() {
		if k == c {
			return true
		}
	}
	return false
}
