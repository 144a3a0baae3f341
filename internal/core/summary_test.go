package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTotals(t *testing.T) {
	items := []Expense{
		{Amount: decimal.NewFromInt(500), Category: CategoryFood},
		{Amount: decimal.NewFromInt(50), Category: CategoryTransport},
		{Amount: decimal.RequireFromString("20.5"), Category: "FOOD"},
		{Amount: decimal.NewFromInt(10), Category: ""},
		{Amount: decimal.NewFromInt(5), Category: "gifts"},
	}
	got := Totals(items)
	want := []CategoryAmount{
		{CategoryFood, decimal.RequireFromString("520.5")},
		{CategoryTransport, decimal.NewFromInt(50)},
		{CategoryOther, decimal.NewFromInt(15)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d totals, got %v", len(want), got)
	}
	for i := range want {
		if got[i].Category != want[i].Category || !got[i].Amount.Equal(want[i].Amount) {
			t.Fatalf("total %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if s := Sum(items); !s.Equal(decimal.RequireFromString("585.5")) {
		t.Fatalf("sum=%s", s)
	}
}

func TestTotalsEmpty(t *testing.T) {
	if got := Totals(nil); len(got) != 0 {
		t.Fatalf("expected no totals, got %v", got)
	}
}
