package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Percentage is a non-negative decimal percentage (40 means 40%). A group of
// percentages describing ownership of one unit must sum to 100; that check
// belongs to the code that owns the group, not to the individual value.
type Percentage struct {
	d decimal.Decimal
}

// PercentFromString parses a percentage string, rejecting negative values.
func PercentFromString(s string) (Percentage, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percentage{}, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	if d.IsNegative() {
		return Percentage{}, fmt.Errorf("percentage %q is negative", s)
	}
	return Percentage{d: d}, nil
}

// PercentFromInt builds a Percentage from a whole number (40 -> 40%).
func PercentFromInt(n int64) Percentage {
	return Percentage{d: decimal.NewFromInt(n)}
}

// MustPercentFromString is PercentFromString that panics on error.
func MustPercentFromString(s string) Percentage {
	p, err := PercentFromString(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Decimal returns the underlying decimal value.
func (p Percentage) Decimal() decimal.Decimal {
	return p.d
}

func (p Percentage) Add(o Percentage) Percentage { return Percentage{d: p.d.Add(o.d)} }
func (p Percentage) IsZero() bool                { return p.d.IsZero() }

func (p Percentage) String() string {
	return p.d.String()
}

func (p Percentage) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.d.String() + `"`), nil
}

func (p *Percentage) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := PercentFromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Percentage) Value() (driver.Value, error) {
	return p.d.String(), nil
}

func (p *Percentage) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := PercentFromString(v)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case []byte:
		return p.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Percentage", src)
	}
}
