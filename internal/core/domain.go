package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryFood      Category = "food"
	CategoryTransport Category = "transport"
	CategoryShopping  Category = "shopping"
	CategoryOther     Category = "other"

	// CategoryAll is the pseudo-category of the filter selector meaning "no predicate".
	CategoryAll Category = "all"
)

// Document field names of an expense record in the remote collection.
const (
	FieldUserID    = "userId"
	FieldTitle     = "title"
	FieldAmount    = "amount"
	FieldCategory  = "category"
	FieldNote      = "note"
	FieldCreatedAt = "createdAt"
	FieldDate      = "date"
)

type (
	Category string

	// Expense is a single record of the per-user expenses collection.
	// CreatedAt and Date are nil when the stored document carries no usable timestamp.
	Expense struct {
		ID        string
		UserID    string
		Title     string
		Amount    decimal.Decimal
		Category  Category
		Note      string
		CreatedAt *time.Time
		Date      *time.Time
	}

	// Draft holds the user supplied fields of an expense before the remote
	// store assigns its id and creation timestamp.
	Draft struct {
		Title    string
		Amount   decimal.Decimal
		Category Category
		Note     string
		Date     *time.Time
	}

	// Patch is a partial update; nil fields are left untouched.
	Patch struct {
		Title    *string
		Amount   *decimal.Decimal
		Category *Category
		Note     *string
		Date     *time.Time
	}
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyPatch      = errors.New("empty patch")
)

// Categories returns the known category set in display order.
func Categories() []Category {
	return []Category{CategoryFood, CategoryTransport, CategoryShopping, CategoryOther}
}

// Label returns the display label of the category.
func (c Category) Label() string {
	switch c {
	case CategoryFood:
		return "Food"
	case CategoryTransport:
		return "Transport"
	case CategoryShopping:
		return "Shopping"
	case CategoryOther:
		return "Other"
	case CategoryAll, "":
		return "All"
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

// IsAll reports whether the category selects the whole collection.
func (c Category) IsAll() bool {
	return strings.TrimSpace(string(c)) == "" || strings.EqualFold(strings.TrimSpace(string(c)), string(CategoryAll))
}

// Validate accepts any non-empty lowercase label; the set is open for extension
// but "all" is reserved for the filter selector.
func (c Category) Validate() error {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return ErrEmptyCategory
	}
	if c.IsAll() || s != strings.ToLower(s) {
		return ErrInvalidCategory
	}
	return nil
}

// Normalize lowercases and trims a category label, mapping empty to CategoryOther.
func (c Category) Normalize() Category {
	s := strings.ToLower(strings.TrimSpace(string(c)))
	if s == "" {
		return CategoryOther
	}
	return Category(s)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if len(title) > 200 {
		return ErrTitleTooLong
	}
	return nil
}

func (d Draft) Validate() error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return d.Category.Validate()
}

// Validate checks only the fields the patch sets.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Category != nil {
		if err := p.Category.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Category == nil && p.Note == nil && p.Date == nil
}

// Apply returns a copy of e with the patch merged in.
func (e Expense) Apply(p Patch) Expense {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Date != nil {
		d := p.Date.UTC()
		e.Date = &d
	}
	return e
}
