package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor units carried by every Money value (2 = cents).
const Scale = 2

// Money is an exact fixed-scale decimal amount. All arithmetic between Money
// values is exact; rounding happens only at the explicit rounding points
// (FromDecimal, SplitEven) using round-half-up.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// New builds a Money from an integer number of minor units (e.g. cents).
func New(minorUnits int64) Money {
	return Money{d: decimal.New(minorUnits, -Scale)}
}

// FromString parses a decimal string into Money. Strings with more than Scale
// decimal places are rejected rather than silently rounded.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.Equal(d.Round(Scale)) {
		return Money{}, fmt.Errorf("amount %q has more than %d decimal places", s, Scale)
	}
	return Money{d: d}, nil
}

// MustFromString is FromString that panics on error. Intended for constants
// and tests.
func MustFromString(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal rounds an arbitrary-precision decimal to Money's scale using
// round-half-up. This is one of the two sanctioned rounding points.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// Decimal returns the underlying arbitrary-precision value for callers that
// need to carry intermediate results at full precision before rounding back
// via FromDecimal.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) Add(o Money) Money      { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money      { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money             { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money             { return Money{d: m.d.Abs()} }
func (m Money) Cmp(o Money) int        { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool     { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool  { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) IsZero() bool           { return m.d.IsZero() }
func (m Money) IsNegative() bool       { return m.d.IsNegative() }
func (m Money) IsPositive() bool       { return m.d.IsPositive() }

// MulPercent returns m * p / 100 at full precision. The caller decides when
// to round the result back down to Money's scale.
func (m Money) MulPercent(p Percentage) decimal.Decimal {
	return m.d.Mul(p.d).Div(decimal.NewFromInt(100))
}

// minorUnits returns the amount as an integer count of minor units.
func (m Money) minorUnits() int64 {
	return m.d.Shift(Scale).IntPart()
}

// SplitEven divides the amount into n parts that sum back to the amount
// exactly. Each part is the floor of amount/n at Money's scale; the remainder
// (at most n-1 minor units) is assigned to the first part. This is the
// documented remainder policy for installment splits.
func (m Money) SplitEven(n int) ([]Money, error) {
	if n < 1 {
		return nil, fmt.Errorf("cannot split into %d parts", n)
	}
	units := m.minorUnits()
	base := units / int64(n)
	rem := units - base*int64(n)

	parts := make([]Money, n)
	for i := range parts {
		parts[i] = New(base)
	}
	parts[0] = parts[0].Add(New(rem))
	return parts, nil
}

// String formats the amount with exactly Scale decimal places.
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a quoted fixed-scale string, so that no
// consumer ever sees a binary float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number.
// Inputs with more than Scale decimal places are rejected.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer. Amounts are stored as TEXT so that no
// precision is lost in the database.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for TEXT columns written by Value.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		return m.Scan(string(v))
	case nil:
		*m = Zero
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
}
