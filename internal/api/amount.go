package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/example/ledger-core/internal/ledger"
)

// amountText keeps an amount exactly as sent, quoted or not, so that
// non-numeric values reach ledger.ParseAmount and fail as invalid_amount
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountText(s)
		return nil
	}
	*a = amountText(b)
	return nil
}

func (a amountText) parse() (decimal.Decimal, error) {
	return ledger.ParseAmount(string(a))
}

type createEntryBody struct {
	AccountID     string           `json:"account_id"`
	EffectiveDate string           `json:"effective_date"`
	Amount        amountText       `json:"amount"`
	Direction     ledger.Direction `json:"direction"`
	Description   string           `json:"description"`
	CategoryID    string           `json:"category_id"`
}

func (b createEntryBody) request() (ledger.CreateEntryRequest, error) {
	amount, err := b.Amount.parse()
	if err != nil {
		return ledger.CreateEntryRequest{}, err
	}
	return ledger.CreateEntryRequest{
		AccountID:     b.AccountID,
		EffectiveDate: b.EffectiveDate,
		Amount:        amount,
		Direction:     b.Direction,
		Description:   b.Description,
		CategoryID:    b.CategoryID,
	}, nil
}

type createTransferBody struct {
	FromAccountID string     `json:"from_account_id"`
	ToAccountID   string     `json:"to_account_id"`
	Amount        amountText `json:"amount"`
	EffectiveDate string     `json:"effective_date"`
	CategoryID    string     `json:"category_id"`
	Description   string     `json:"description"`
}

func (b createTransferBody) request() (ledger.CreateTransferRequest, error) {
	amount, err := b.Amount.parse()
	if err != nil {
		return ledger.CreateTransferRequest{}, err
	}
	return ledger.CreateTransferRequest{
		FromAccountID: b.FromAccountID,
		ToAccountID:   b.ToAccountID,
		Amount:        amount,
		EffectiveDate: b.EffectiveDate,
		CategoryID:    b.CategoryID,
		Description:   b.Description,
	}, nil
}

type createAccountBody struct {
	Name           string                `json:"name"`
	Type           ledger.AccountType    `json:"type"`
	Subtype        ledger.AccountSubtype `json:"subtype"`
	Currency       string                `json:"currency"`
	OpeningBalance *amountText           `json:"opening_balance"`
	OpeningDate    string                `json:"opening_date"`
	CreditLimit    decimal.NullDecimal   `json:"credit_limit"`
	InterestRate   decimal.NullDecimal   `json:"interest_rate"`
}

func (b createAccountBody) request() (ledger.CreateAccountRequest, error) {
	req := ledger.CreateAccountRequest{
		Name:         b.Name,
		Type:         b.Type,
		Subtype:      b.Subtype,
		Currency:     b.Currency,
		OpeningDate:  b.OpeningDate,
		CreditLimit:  b.CreditLimit,
		InterestRate: b.InterestRate,
	}
	if b.OpeningBalance != nil {
		opening, err := b.OpeningBalance.parse()
		if err != nil {
			return ledger.CreateAccountRequest{}, err
		}
		req.OpeningBalance = opening
	}
	return req, nil
}
