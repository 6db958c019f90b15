package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the accounting class of an account
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
)

// AccountSubtype narrows an AccountType
type AccountSubtype string

const (
	SubtypeChecking   AccountSubtype = "CHECKING"
	SubtypeSavings    AccountSubtype = "SAVINGS"
	SubtypeInvestment AccountSubtype = "INVESTMENT"
	SubtypeCredit     AccountSubtype = "CREDIT"
	SubtypeLoan       AccountSubtype = "LOAN"
)

// AllowedSubtypes returns the subtypes each account type may carry
func AllowedSubtypes() map[AccountType][]AccountSubtype {
	return map[AccountType][]AccountSubtype{
		AccountTypeAsset:     {SubtypeChecking, SubtypeSavings, SubtypeInvestment},
		AccountTypeLiability: {SubtypeCredit, SubtypeLoan},
	}
}

// IsValidSubtype reports whether subtype belongs to accountType
func IsValidSubtype(accountType AccountType, subtype AccountSubtype) bool {
	for _, s := range AllowedSubtypes()[accountType] {
		if s == subtype {
			return true
		}
	}
	return false
}

// Direction is the user-facing movement of money: out of or into the user's pocket
type Direction string

const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

// Opposite returns the other direction
func (d Direction) Opposite() Direction {
	if d == DirectionOut {
		return DirectionIn
	}
	return DirectionOut
}

// CategoryType is inherited by a category from its group
type CategoryType string

const (
	CategoryTypeIncome   CategoryType = "INCOME"
	CategoryTypeExpense  CategoryType = "EXPENSE"
	CategoryTypeTransfer CategoryType = "TRANSFER"
)

// ValidCategoryType reports whether t is a known category type
func ValidCategoryType(t CategoryType) bool {
	switch t {
	case CategoryTypeIncome, CategoryTypeExpense, CategoryTypeTransfer:
		return true
	}
	return false
}

// ReconciliationStatus is derived from the matched and manually-cleared flags
type ReconciliationStatus string

const (
	StatusUnmatched       ReconciliationStatus = "unmatched"
	StatusManuallyCleared ReconciliationStatus = "manually_cleared"
	StatusMatched         ReconciliationStatus = "matched"
)

// TransferDirection marks which side of a transfer an entry is
type TransferDirection string

const (
	TransferOutgoing TransferDirection = "outgoing"
	TransferIncoming TransferDirection = "incoming"
)

// DateLayout is the wire and storage format of effective dates
const DateLayout = "2006-01-02"

// NormalizeDate validates a calendar date and returns it in DateLayout
func NormalizeDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", InvalidInput("effective_date", fmt.Sprintf("date %q must be formatted YYYY-MM-DD", s))
	}
	return t.Format(DateLayout), nil
}

// Account represents a user account whose balance is driven by its entries
type Account struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           AccountType         `json:"type"`
	Subtype        AccountSubtype      `json:"subtype"`
	Currency       string              `json:"currency"`
	CurrentBalance Money               `json:"current_balance"`
	CreditLimit    NullMoney           `json:"credit_limit"`
	InterestRate   decimal.NullDecimal `json:"interest_rate"`
	CreatedBy      string              `json:"created_by,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TransferLink ties an entry to its counterpart in another account
type TransferLink struct {
	TransferID         string            `json:"transfer_id"`
	CounterpartEntryID string            `json:"counterpart_entry_id,omitempty"`
	Direction          TransferDirection `json:"direction"`
	Orphaned           bool              `json:"orphaned"`
}

// Entry is a single ledger line posted against one account
type Entry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	AccountName   string          `json:"account_name,omitempty"`
	EffectiveDate string          `json:"effective_date"`
	Description   string          `json:"description"`
	RawAmount     Money           `json:"raw_amount"`
	Direction     Direction       `json:"direction"`
	SignedAmount  Money           `json:"signed_amount"`
	CategoryID    string          `json:"category_id,omitempty"`
	IsMatched     bool            `json:"is_matched"`
	IsCleared     bool            `json:"is_cleared"`
	Transfer      *TransferLink   `json:"transfer,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTransfer reports whether the entry is one side of a transfer
func (e *Entry) IsTransfer() bool {
	return e.Transfer != nil
}

// ReconciliationStatus projects the matched and cleared flags onto a single status
func (e *Entry) ReconciliationStatus() ReconciliationStatus {
	switch {
	case e.IsMatched:
		return StatusMatched
	case e.IsCleared:
		return StatusManuallyCleared
	default:
		return StatusUnmatched
	}
}

// IsReconciled reports whether the entry is matched or manually cleared
func (e *Entry) IsReconciled() bool {
	return e.IsMatched || e.IsCleared
}

// Transfer is the pair of entries sharing a transfer id
type Transfer struct {
	ID  string `json:"transfer_id"`
	Out *Entry `json:"entry_out,omitempty"`
	In  *Entry `json:"entry_in,omitempty"`
}
