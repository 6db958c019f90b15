package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest drift at which a stored balance is still consistent
var BalanceTolerance = decimal.RequireFromString("0.01")

// Validator checks ledger invariants without changing anything
type Validator struct {
	store Store
	now   func() time.Time
}

// NewValidator creates a new validator instance
func NewValidator(store Store) *Validator {
	return &Validator{store: store, now: time.Now}
}

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	IsValid        bool                   `json:"is_valid"`
	ValidationType string                 `json:"validation_type"`
	Message        string                 `json:"message"`
	AccountID      string                 `json:"account_id,omitempty"`
	TransferID     string                 `json:"transfer_id,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// ValidateAccountShape checks the type/subtype pairing
func (v *Validator) ValidateAccountShape(t AccountType, st AccountSubtype) *ValidationResult {
	res := &ValidationResult{IsValid: true, ValidationType: "account_shape", Timestamp: v.now()}
	if err := validateAccountShape(t, st); err != nil {
		res.IsValid = false
		res.Message = err.Error()
		return res
	}
	res.Message = fmt.Sprintf("%s/%s is valid", t, st)
	return res
}

// ValidateCurrencyCode checks that the code is ISO 4217 shaped
func (v *Validator) ValidateCurrencyCode(code string) *ValidationResult {
	res := &ValidationResult{IsValid: true, ValidationType: "currency_code", Timestamp: v.now()}
	if err := validateCurrency(code); err != nil {
		res.IsValid = false
		res.Message = err.Error()
		return res
	}
	res.Message = fmt.Sprintf("currency code '%s' is valid", code)
	return res
}

// ValidateBalanceConsistency compares each stored balance with the sum of its entries
func (v *Validator) ValidateBalanceConsistency(ctx context.Context) ([]*ValidationResult, error) {
	var results []*ValidationResult
	err := v.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		accounts, err := tx.ListAccounts(ctx, AccountFilter{})
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, a := range accounts {
			sum, err := tx.SumSignedAmounts(ctx, a.ID)
			if err != nil {
				return fmt.Errorf("failed to sum entries for account %s: %w", a.ID, err)
			}
			drift := a.CurrentBalance.Sub(sum)
			ok := drift.Abs().LessThanOrEqual(BalanceTolerance)
			msg := "balance matches entry history"
			if !ok {
				msg = fmt.Sprintf("balance drifted by %s", drift.StringFixed(2))
			}
			results = append(results, &ValidationResult{
				IsValid:        ok,
				ValidationType: "balance_consistency",
				Message:        msg,
				AccountID:      a.ID,
				Timestamp:      v.now(),
				Details: map[string]interface{}{
					"account_name":   a.Name,
					"stored_balance": a.CurrentBalance.StringFixed(MoneyScale),
					"entry_sum":      sum.StringFixed(MoneyScale),
				},
			})
		}
		return nil
	})
	return results, err
}

// ValidateTransferPairs checks that every transfer has two sides in different
// accounts with equal magnitude, opposite direction and the same date.
// Orphaned sides are reported as invalid with their flag in Details.
func (v *Validator) ValidateTransferPairs(ctx context.Context) ([]*ValidationResult, error) {
	var results []*ValidationResult
	err := v.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		entries, err := tx.ListTransferEntries(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list transfer entries: %w", err)
		}
		grouped := map[string][]*Entry{}
		var order []string
		for _, e := range entries {
			id := e.Transfer.TransferID
			if _, ok := grouped[id]; !ok {
				order = append(order, id)
			}
			grouped[id] = append(grouped[id], e)
		}
		for _, id := range order {
			results = append(results, v.checkPair(id, grouped[id]))
		}
		return nil
	})
	return results, err
}

func (v *Validator) checkPair(id string, sides []*Entry) *ValidationResult {
	res := &ValidationResult{IsValid: false, ValidationType: "transfer_pair", TransferID: id, Timestamp: v.now()}
	if len(sides) != 2 {
		res.Message = fmt.Sprintf("transfer has %d sides", len(sides))
		res.Details = map[string]interface{}{"orphaned": len(sides) == 1 && sides[0].Transfer.Orphaned}
		return res
	}
	a, b := sides[0], sides[1]
	switch {
	case a.AccountID == b.AccountID:
		res.Message = "both sides post to the same account"
	case !a.SignedAmount.Neg().Equal(b.SignedAmount.Decimal):
		res.Message = "sides do not carry equal and opposite amounts"
	case a.EffectiveDate != b.EffectiveDate:
		res.Message = "sides have different effective dates"
	case a.Transfer.CounterpartEntryID != b.ID || b.Transfer.CounterpartEntryID != a.ID:
		res.Message = "sides do not point at each other"
	default:
		res.IsValid = true
		res.Message = "transfer pair is consistent"
	}
	return res
}
