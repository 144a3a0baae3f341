package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCategoryValidate(t *testing.T) {
	cases := []struct {
		c   Category
		err error
	}{
		{CategoryFood, nil},
		{"groceries", nil},
		{"", ErrEmptyCategory},
		{"  ", ErrEmptyCategory},
		{"all", ErrInvalidCategory},
		{"Food", ErrInvalidCategory},
	}
	for _, tc := range cases {
		if err := tc.c.Validate(); !errors.Is(err, tc.err) {
			t.Fatalf("%q: expected %v, got %v", tc.c, tc.err, err)
		}
	}
}

func TestCategoryIsAll(t *testing.T) {
	for _, c := range []Category{"", " ", "all", "All"} {
		if !c.IsAll() {
			t.Fatalf("%q should select all", c)
		}
	}
	if CategoryFood.IsAll() {
		t.Fatalf("food must not select all")
	}
}

func TestCategoryLabel(t *testing.T) {
	if got := CategoryTransport.Label(); got != "Transport" {
		t.Fatalf("label=%q", got)
	}
	if got := Category("").Label(); got != "All" {
		t.Fatalf("label=%q", got)
	}
	if got := Category("gifts").Label(); got != "Gifts" {
		t.Fatalf("label=%q", got)
	}
}

func TestDraftValidate(t *testing.T) {
	good := Draft{Title: "Bus", Amount: decimal.NewFromInt(50), Category: CategoryTransport}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Draft)
		err  error
	}{
		{"empty title", func(d *Draft) { d.Title = "  " }, ErrEmptyTitle},
		{"long title", func(d *Draft) { d.Title = strings.Repeat("x", 201) }, ErrTitleTooLong},
		{"zero amount", func(d *Draft) { d.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(d *Draft) { d.Amount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"missing category", func(d *Draft) { d.Category = "" }, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := good
			tc.mut(&d)
			if err := d.Validate(); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestPatchValidateAndApply(t *testing.T) {
	if err := (Patch{}).Validate(); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	for _, amount := range []decimal.Decimal{decimal.NewFromInt(-5), decimal.Zero} {
		if err := (Patch{Amount: &amount}).Validate(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	cents := decimal.RequireFromString("0.01")
	if err := (Patch{Amount: &cents}).Validate(); err != nil {
		t.Fatalf("amount 0.01: unexpected error %v", err)
	}

	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	e := Expense{ID: "a", UserID: "u1", Title: "Lunch", Amount: decimal.NewFromInt(500), Category: CategoryFood, CreatedAt: &created}
	title := "X"
	note := "with friends"
	got := e.Apply(Patch{Title: &title, Note: &note})
	if got.Title != "X" || got.Note != "with friends" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.ID != "a" || got.UserID != "u1" || !got.Amount.Equal(decimal.NewFromInt(500)) || got.CreatedAt != &created {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if e.Title != "Lunch" {
		t.Fatalf("Apply must not mutate the receiver")
	}
}
