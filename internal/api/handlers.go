package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/security"
)

type accountResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Account       *ledger.Account `json:"account"`
}

type listAccountsResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Accounts      []*ledger.Account `json:"accounts"`
}

type updateAccountBody struct {
	Name         *string                   `json:"name"`
	Type         *ledger.AccountType       `json:"type"`
	Subtype      *ledger.AccountSubtype    `json:"subtype"`
	Currency     *string                   `json:"currency"`
	CreditLimit  nullable[decimal.Decimal] `json:"credit_limit"`
	InterestRate nullable[decimal.Decimal] `json:"interest_rate"`
}

func (b updateAccountBody) request() ledger.UpdateAccountRequest {
	return ledger.UpdateAccountRequest{
		Name:         b.Name,
		Type:         b.Type,
		Subtype:      b.Subtype,
		Currency:     b.Currency,
		CreditLimit:  nullDecimal(b.CreditLimit),
		InterestRate: nullDecimal(b.InterestRate),
	}
}

func nullDecimal(n nullable[decimal.Decimal]) *decimal.NullDecimal {
	if !n.Set {
		return nil
	}
	return &decimal.NullDecimal{Decimal: n.Value, Valid: n.Valid}
}

func cid(r *http.Request) string {
	return security.CorrelationIDFromContext(r.Context())
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ledger.AccountFilter{
			Type:    ledger.AccountType(r.URL.Query().Get("type")),
			Subtype: ledger.AccountSubtype(r.URL.Query().Get("subtype")),
		}

		accounts, err := deps.Ledger.ListAccounts(r.Context(), filter)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		if accounts == nil {
			accounts = []*ledger.Account{}
		}

		writeJSON(w, r, http.StatusOK, listAccountsResponse{CorrelationID: cid(r), Accounts: accounts})
	}
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createAccountBody
		if !decodeJSON(w, r, &body) {
			return
		}
		req, err := body.request()
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		account, err := deps.Ledger.CreateAccount(r.Context(), req)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, accountResponse{CorrelationID: cid(r), Account: account})
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Ledger.GetAccount(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, accountResponse{CorrelationID: cid(r), Account: account})
	}
}

func handleUpdateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateAccountBody
		if !decodeJSON(w, r, &body) {
			return
		}

		account, err := deps.Ledger.UpdateAccount(r.Context(), chi.URLParam(r, "id"), body.request())
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, accountResponse{CorrelationID: cid(r), Account: account})
	}
}

func handleDeleteAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Ledger.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRefreshBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Ledger.RefreshBalance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func handleRecomputeBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Ledger.RecomputeBalance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}
