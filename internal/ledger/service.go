package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogCache caches the category catalog between requests. Errors are
// logged and the store is used instead.
//
// Get reports the generation it looked under even on a miss. Set stores under
// that generation, and Invalidate moves to a new one, so a catalog loaded
// before an invalidation is never served after it.
type CatalogCache interface {
	Get(ctx context.Context) (c *Catalog, generation int64, ok bool, err error)
	Set(ctx context.Context, generation int64, c *Catalog) error
	Invalidate(ctx context.Context) error
}

// LedgerService implements account, entry, transfer, reconciliation,
// bulk-edit and category operations on top of a Store
type LedgerService struct {
	store      Store
	cache      CatalogCache
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	newEntryID func() string
}

// Option configures a LedgerService
type Option func(*LedgerService)

func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func WithCatalogCache(c CatalogCache) Option {
	return func(s *LedgerService) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
		// v7 ids grow with time, so entries created on the same date sort
		// newest first and never land behind an issued cursor.
		newEntryID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccountRequest represents a request to open an account
type CreateAccountRequest struct {
	Name           string              `json:"name"`
	Type           AccountType         `json:"type"`
	Subtype        AccountSubtype      `json:"subtype"`
	Currency       string              `json:"currency"`
	OpeningBalance decimal.Decimal     `json:"opening_balance"`
	OpeningDate    string              `json:"opening_date"`
	CreditLimit    decimal.NullDecimal `json:"credit_limit"`
	InterestRate   decimal.NullDecimal `json:"interest_rate"`
}

// UpdateAccountRequest carries the account fields to change; nil leaves a field as is
type UpdateAccountRequest struct {
	Name         *string              `json:"name,omitempty"`
	Type         *AccountType         `json:"type,omitempty"`
	Subtype      *AccountSubtype      `json:"subtype,omitempty"`
	Currency     *string              `json:"currency,omitempty"`
	CreditLimit  *decimal.NullDecimal `json:"credit_limit,omitempty"`
	InterestRate *decimal.NullDecimal `json:"interest_rate,omitempty"`
}

// BalanceRefresh is the outcome of refreshing an account balance from its
// entries. Previous is the stored balance and Current the sum of the entries;
// the stored balance only moves to Current when WasUpdated is set.
type BalanceRefresh struct {
	AccountID  string `json:"account_id"`
	Previous   Money  `json:"previous"`
	Current    Money  `json:"current"`
	Difference Money  `json:"difference"`
	WasUpdated bool   `json:"was_updated"`
}

// BalanceRecompute is the outcome of recomputing an account balance
type BalanceRecompute struct {
	AccountID string `json:"account_id"`
	Previous  Money  `json:"previous"`
	Current   Money  `json:"current"`
	Changed   bool   `json:"changed"`
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// DefaultCurrency is used when an account is created without one
const DefaultCurrency = "USD"

func validateAccountShape(t AccountType, st AccountSubtype) error {
	if t != AccountTypeAsset && t != AccountTypeLiability {
		return InvalidInput("type", fmt.Sprintf("account type must be %s or %s", AccountTypeAsset, AccountTypeLiability))
	}
	if !IsValidSubtype(t, st) {
		return InvalidInput("subtype", fmt.Sprintf("subtype %q is not allowed for %s accounts", st, t))
	}
	return nil
}

func validateCurrency(c string) error {
	if !currencyPattern.MatchString(c) {
		return InvalidInput("currency", fmt.Sprintf("currency %q must be a 3-letter ISO 4217 code", c))
	}
	return nil
}

func validateOptionalRate(field string, v decimal.NullDecimal) error {
	if v.Valid && v.Decimal.IsNegative() {
		return InvalidInput(field, field+" must not be negative")
	}
	return nil
}

func validateCreditLimit(v decimal.NullDecimal) error {
	if err := validateOptionalRate("credit_limit", v); err != nil {
		return err
	}
	if v.Valid && HasSubCent(v.Decimal) {
		return InvalidInput("credit_limit", fmt.Sprintf("credit_limit has more than %d decimal places", MoneyScale))
	}
	return nil
}

// CreateAccount opens an account. A non-zero opening balance is posted as an
// "Opening Balance" entry in the same transaction.
func (s *LedgerService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, InvalidInput("name", "name is required")
	}
	if err := validateAccountShape(req.Type, req.Subtype); err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if err := validateCurrency(currency); err != nil {
		return nil, err
	}
	if err := validateCreditLimit(req.CreditLimit); err != nil {
		return nil, err
	}
	if HasSubCent(req.OpeningBalance) {
		return nil, InvalidAmount(fmt.Sprintf("opening_balance has more than %d decimal places", MoneyScale))
	}
	if err := validateOptionalRate("interest_rate", req.InterestRate); err != nil {
		return nil, err
	}
	openingDate := s.now().Format(DateLayout)
	if req.OpeningDate != "" {
		d, err := NormalizeDate(req.OpeningDate)
		if err != nil {
			return nil, err
		}
		openingDate = d
	}

	now := s.now().UTC()
	caller := CallerFromContext(ctx)
	catalogChanged := false
	account := &Account{
		ID:             s.newID(),
		Name:           name,
		Type:           req.Type,
		Subtype:        req.Subtype,
		Currency:       currency,
		CurrentBalance: NewMoney(decimal.Zero),
		CreditLimit:    NewNullMoney(req.CreditLimit),
		InterestRate:   req.InterestRate,
		CreatedBy:      caller,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		if req.OpeningBalance.IsZero() {
			return nil
		}
		cat, created, err := s.ensureSystemCategory(ctx, tx, OpeningBalanceCategoryName)
		if err != nil {
			return err
		}
		catalogChanged = created
		entry, err := s.postEntry(ctx, tx, account, postParams{
			date:        openingDate,
			amount:      req.OpeningBalance,
			direction:   DirectionOf(req.OpeningBalance),
			description: OpeningBalanceCategoryName,
			categoryID:  cat.ID,
		})
		if err != nil {
			return err
		}
		account.CurrentBalance = entry.SignedAmount
		return nil
	})
	if err != nil {
		return nil, err
	}
	if catalogChanged {
		s.invalidateCatalog(ctx)
	}

	s.logger.InfoContext(ctx, "account_created", "account_id", account.ID, "type", account.Type, "caller", caller)
	return account, nil
}

// GetAccount returns one account
func (s *LedgerService) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account *Account
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		account, err = tx.GetAccount(ctx, id, false)
		return err
	})
	return account, err
}

// ListAccounts returns accounts ordered by name
func (s *LedgerService) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	var accounts []*Account
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, filter)
		return err
	})
	return accounts, err
}

// UpdateAccount changes name, type, subtype, currency or the optional terms of an account
func (s *LedgerService) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*Account, error) {
	var account *Account
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.GetAccount(ctx, id, true)
		if err != nil {
			return err
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return InvalidInput("name", "name must not be empty")
			}
			a.Name = name
		}
		if req.Type != nil {
			a.Type = *req.Type
		}
		if req.Subtype != nil {
			a.Subtype = *req.Subtype
		}
		if err := validateAccountShape(a.Type, a.Subtype); err != nil {
			return err
		}
		if req.Currency != nil {
			if err := validateCurrency(*req.Currency); err != nil {
				return err
			}
			a.Currency = *req.Currency
		}
		if req.CreditLimit != nil {
			if err := validateCreditLimit(*req.CreditLimit); err != nil {
				return err
			}
			a.CreditLimit = NewNullMoney(*req.CreditLimit)
		}
		if req.InterestRate != nil {
			if err := validateOptionalRate("interest_rate", *req.InterestRate); err != nil {
				return err
			}
			a.InterestRate = *req.InterestRate
		}
		a.UpdatedAt = s.now().UTC()
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an account that has no entries
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetAccount(ctx, id, true); err != nil {
			return err
		}
		n, err := tx.CountAccountEntries(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count account entries: %w", err)
		}
		if n > 0 {
			return ReferencedEntity("account", id, n)
		}
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account_deleted", "account_id", id, "caller", CallerFromContext(ctx))
	return nil
}

// RecomputeBalance sets the balance to the sum of the account's signed amounts.
// Running it again with no intervening writes reports Changed=false.
func (s *LedgerService) RecomputeBalance(ctx context.Context, accountID string) (*BalanceRecompute, error) {
	var out *BalanceRecompute
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		previous, current, err := s.recompute(ctx, tx, accountID)
		if err != nil {
			return err
		}
		out = &BalanceRecompute{
			AccountID: accountID,
			Previous:  Money{Decimal: previous},
			Current:   Money{Decimal: current},
			Changed:   !previous.Equal(current),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Changed {
		s.logger.WarnContext(ctx, "balance_drift_corrected", "account_id", accountID,
			"previous", out.Previous.String(), "current", out.Current.String())
	}
	return out, nil
}

// RefreshBalance compares the stored balance with the sum of the account's
// entries and overwrites it only when they differ by more than BalanceTolerance
func (s *LedgerService) RefreshBalance(ctx context.Context, accountID string) (*BalanceRefresh, error) {
	var out *BalanceRefresh
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		stored, sum, err := s.storedAndSum(ctx, tx, accountID)
		if err != nil {
			return err
		}
		diff := sum.Sub(stored)
		out = &BalanceRefresh{
			AccountID:  accountID,
			Previous:   Money{Decimal: stored},
			Current:    Money{Decimal: sum},
			Difference: Money{Decimal: diff},
		}
		if diff.Abs().LessThanOrEqual(BalanceTolerance) {
			return nil
		}
		if err := tx.SetBalance(ctx, accountID, sum); err != nil {
			return fmt.Errorf("failed to set balance: %w", err)
		}
		out.WasUpdated = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.WasUpdated {
		s.logger.WarnContext(ctx, "balance_refreshed", "account_id", accountID,
			"previous", out.Previous.String(), "current", out.Current.String())
	}
	return out, nil
}

func (s *LedgerService) storedAndSum(ctx context.Context, tx Tx, accountID string) (decimal.Decimal, decimal.Decimal, error) {
	a, err := tx.GetAccount(ctx, accountID, true)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sum, err := tx.SumSignedAmounts(ctx, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum entries: %w", err)
	}
	return a.CurrentBalance.Decimal, sum, nil
}

func (s *LedgerService) recompute(ctx context.Context, tx Tx, accountID string) (decimal.Decimal, decimal.Decimal, error) {
	stored, sum, err := s.storedAndSum(ctx, tx, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !stored.Equal(sum) {
		if err := tx.SetBalance(ctx, accountID, sum); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to set balance: %w", err)
		}
	}
	return stored, sum, nil
}
