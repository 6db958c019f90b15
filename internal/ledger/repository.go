package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store runs units of work against persistent storage. Every mutation the
// service performs happens inside a single WithTx call.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// AccountFilter narrows account listings
type AccountFilter struct {
	Type    AccountType    `json:"type,omitempty"`
	Subtype AccountSubtype `json:"subtype,omitempty"`
}

// Tx is the storage surface available inside a transaction
type Tx interface {
	InsertAccount(ctx context.Context, a *Account) error
	// GetAccount returns an *Error with CodeNotFound when absent. forUpdate
	// locks the row where the backend supports it.
	GetAccount(ctx context.Context, id string, forUpdate bool) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	DeleteAccount(ctx context.Context, id string) error
	AddToBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
	SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error
	SumSignedAmounts(ctx context.Context, accountID string) (decimal.Decimal, error)
	CountAccountEntries(ctx context.Context, accountID string) (int, error)

	InsertGroup(ctx context.Context, g *CategoryGroup) error
	GetGroup(ctx context.Context, id string) (*CategoryGroup, error)
	FindGroup(ctx context.Context, name string, t CategoryType) (*CategoryGroup, error)
	ListGroups(ctx context.Context) ([]CategoryGroup, error)
	InsertCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	FindCategory(ctx context.Context, groupID, name string) (*Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)
	CountCategoryEntries(ctx context.Context, categoryID string) (int, error)

	InsertEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	// GetEntries returns the entries that exist among ids, in no particular order
	GetEntries(ctx context.Context, ids []string) ([]*Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id string) error
	// ListEntries returns up to limit entries strictly after the cursor
	ListEntries(ctx context.Context, filter EntryFilter, after *Cursor, limit int) ([]*Entry, error)
	CountEntries(ctx context.Context, filter EntryFilter) (int, error)
	// CountEntriesAmong counts the entries matching filter whose id is in ids
	CountEntriesAmong(ctx context.Context, filter EntryFilter, ids []string) (int, error)
	EntryIDs(ctx context.Context, filter EntryFilter) ([]string, error)
	SummarizeEntries(ctx context.Context, filter EntryFilter) (FilterSummary, error)
	EntriesByTransfer(ctx context.Context, transferID string) ([]*Entry, error)
	ListTransferEntries(ctx context.Context, accountID string) ([]*Entry, error)
	SetEntriesCategory(ctx context.Context, ids []string, categoryID string) (int, error)
	SetEntriesCleared(ctx context.Context, ids []string, cleared bool) (int, error)
}

type callerKey struct{}

// WithCaller attaches the opaque caller identity supplied by the auth layer
func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerKey{}, callerID)
}

// CallerFromContext returns the caller identity, or "" when none was attached
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok {
		return v
	}
	return ""
}
