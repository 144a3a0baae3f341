package remote

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OpEqual          Operator = "=="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
)

type (
	Operator string

	Filter struct {
		Field string   `json:"field"`
		Op    Operator `json:"op"`
		Value any      `json:"value"`
	}

	Query struct {
		Filters    []Filter `json:"filters,omitempty"`
		OrderBy    string   `json:"orderBy,omitempty"`
		Descending bool     `json:"descending,omitempty"`
	}
)

// Where appends a filter and returns the query for chaining.
func (q Query) Where(field string, op Operator, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Order sets the sort field and direction.
func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

// Equalities returns the equality filters of q, the part most backends can push down.
func (q Query) Equalities() map[string]any {
	out := map[string]any{}
	for _, f := range q.Filters {
		if f.Op == OpEqual {
			out[f.Field] = f.Value
		}
	}
	return out
}

// EqualityValue returns the value an equality filter on field requires.
func (q Query) EqualityValue(field string) (any, bool) {
	for _, f := range q.Filters {
		if f.Op == OpEqual && f.Field == field {
			return f.Value, true
		}
	}
	return nil, false
}

func (q Query) Validate() error {
	for _, f := range q.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: empty filter field", ErrInvalidQuery)
		}
		switch f.Op {
		case OpEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
	}
	return nil
}

// Matches reports whether doc satisfies every filter of q.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		// Two strings are equal only byte for byte: "7" must not match "07".
		if f.Op == OpEqual {
			if sv, ok := v.(string); ok {
				if sf, ok := f.Value.(string); ok {
					if sv != sf {
						return false
					}
					continue
				}
			}
		}
		c, ok := Compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if c != 0 {
				return false
			}
		case OpLess:
			if c >= 0 {
				return false
			}
		case OpLessOrEqual:
			if c > 0 {
				return false
			}
		case OpGreater:
			if c <= 0 {
				return false
			}
		case OpGreaterOrEqual:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply filters and orders snapshots in memory. Backends that can only push
// part of a query down run the full query through Apply afterwards.
func (q Query) Apply(snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if q.Matches(s.Data) {
			out = append(out, s)
		}
	}
	if q.OrderBy == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].Data[q.OrderBy]
		b, bok := out[j].Data[q.OrderBy]
		// documents missing the order field sort last
		if !aok || !bok {
			return aok && !bok
		}
		c, ok := Compare(a, b)
		if !ok {
			return false
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Compare orders two field values. Timestamps compare as instants (RFC 3339
// strings included), numbers numerically, everything else as strings.
// The second result is false when the values are not comparable.
func Compare(a, b any) (int, bool) {
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			return na.Cmp(nb), true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0, true
			case !ba:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		return t, err == nil
	}
	return time.Time{}, false
}

func asNumber(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case int32:
		return decimal.NewFromInt32(x), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
