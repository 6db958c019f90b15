package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-entered amount. Non-numeric input and amounts
// finer than a cent are an InvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, InvalidAmount(fmt.Sprintf("amount %q is not a number", s))
	}
	if HasSubCent(d) {
		return decimal.Zero, InvalidAmount(fmt.Sprintf("amount %q has more than %d decimal places", s, MoneyScale))
	}
	return d, nil
}

// DirectionSign returns -1 for money leaving and +1 for money entering.
// ASSET and LIABILITY share the same formula; for liabilities a positive
// signed amount increases what is owed.
func DirectionSign(accountType AccountType, direction Direction) (int64, error) {
	if accountType != AccountTypeAsset && accountType != AccountTypeLiability {
		return 0, InvalidInput("type", fmt.Sprintf("unknown account type %q", accountType))
	}
	switch direction {
	case DirectionOut:
		return -1, nil
	case DirectionIn:
		return 1, nil
	default:
		return 0, InvalidInput("direction", fmt.Sprintf("direction must be %q or %q, got %q", DirectionOut, DirectionIn, direction))
	}
}

// ResolveSignedAmount maps a raw magnitude and direction to the signed ledger amount
func ResolveSignedAmount(accountType AccountType, direction Direction, raw decimal.Decimal) (decimal.Decimal, error) {
	if raw.IsZero() {
		return decimal.Zero, InvalidAmount("amount must be non-zero")
	}
	if HasSubCent(raw) {
		return decimal.Zero, InvalidAmount(fmt.Sprintf("amount %s has more than %d decimal places", raw, MoneyScale))
	}
	sign, err := DirectionSign(accountType, direction)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Abs().Mul(decimal.NewFromInt(sign)), nil
}

// DirectionOf is the inverse of ResolveSignedAmount for a non-zero signed amount
func DirectionOf(signed decimal.Decimal) Direction {
	if signed.IsNegative() {
		return DirectionOut
	}
	return DirectionIn
}
