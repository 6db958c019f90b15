package ledger

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places money is stored and rendered with
const MoneyScale = 2

// Money is an amount of currency. It renders as a JSON string with exactly
// MoneyScale decimal places, so 50 is "50.00".
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d, rounding it to MoneyScale
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(MoneyScale)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(MoneyScale) + `"`), nil
}

// NullMoney is an optional Money that renders as null when unset
type NullMoney struct {
	decimal.NullDecimal
}

// NewNullMoney wraps an optional decimal, rounding it to MoneyScale
func NewNullMoney(d decimal.NullDecimal) NullMoney {
	if d.Valid {
		d.Decimal = d.Decimal.Round(MoneyScale)
	}
	return NullMoney{NullDecimal: d}
}

func (m NullMoney) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return Money{Decimal: m.Decimal}.MarshalJSON()
}

// HasSubCent reports whether d carries more precision than MoneyScale
func HasSubCent(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(MoneyScale))
}
