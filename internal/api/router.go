package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/ledger-core/internal/auth"
	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/security"
)

// DefaultMaxBodyBytes applies when Dependencies.MaxBodyBytes is unset
const DefaultMaxBodyBytes int64 = 1 << 20

type AccountService interface {
	ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error)
	CreateAccount(ctx context.Context, req ledger.CreateAccountRequest) (*ledger.Account, error)
	GetAccount(ctx context.Context, id string) (*ledger.Account, error)
	UpdateAccount(ctx context.Context, id string, req ledger.UpdateAccountRequest) (*ledger.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	RefreshBalance(ctx context.Context, accountID string) (*ledger.BalanceRefresh, error)
	RecomputeBalance(ctx context.Context, accountID string) (*ledger.BalanceRecompute, error)
}

type EntryService interface {
	ListEntries(ctx context.Context, filter ledger.EntryFilter, cursor string, limit int) (*ledger.EntryPage, error)
	CreateEntry(ctx context.Context, req ledger.CreateEntryRequest) (*ledger.Entry, error)
	GetEntry(ctx context.Context, id string) (*ledger.Entry, error)
	UpdateEntry(ctx context.Context, id string, req ledger.UpdateEntryRequest) (*ledger.Entry, error)
	DeleteEntry(ctx context.Context, id string) (*ledger.DeleteEntryResult, error)
	MarkMatched(ctx context.Context, entryID string) (*ledger.Entry, error)
	Unmatch(ctx context.Context, entryID string) (*ledger.Entry, error)
	GetFilteredIDs(ctx context.Context, filter ledger.EntryFilter) (*ledger.FilteredIDs, error)
	BulkReconcile(ctx context.Context, ids []string, action ledger.ReconcileAction) (*ledger.ReconcileResult, error)
	BulkUpdate(ctx context.Context, sel ledger.SelectionDescriptor, changes ledger.Changeset) (*ledger.BulkUpdateResult, error)
	CountSelection(ctx context.Context, sel ledger.SelectionDescriptor) (int, error)
}

type TransferService interface {
	ListTransfers(ctx context.Context, accountID string) ([]*ledger.Transfer, error)
	CreateTransfer(ctx context.Context, req ledger.CreateTransferRequest) (*ledger.Transfer, error)
	GetTransfer(ctx context.Context, transferID string) (*ledger.Transfer, error)
	DeleteTransfer(ctx context.Context, transferID string) (*ledger.TransferDeletion, error)
}

type CategoryService interface {
	Catalog(ctx context.Context) (*ledger.Catalog, error)
	ListGroups(ctx context.Context) ([]ledger.CategoryGroup, error)
	CreateGroup(ctx context.Context, name string, t ledger.CategoryType) (*ledger.CategoryGroup, error)
	ListByType(ctx context.Context, t ledger.CategoryType) ([]ledger.Category, error)
	CreateCategory(ctx context.Context, name, groupID string) (*ledger.Category, error)
	UpdateCategory(ctx context.Context, id string, req ledger.UpdateCategoryRequest) (*ledger.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CategoryUsage(ctx context.Context, id string) (*ledger.CategoryUsage, error)
}

// Ledger is the service surface the API serves. *ledger.LedgerService
// satisfies it.
type Ledger interface {
	AccountService
	EntryService
	TransferService
	CategoryService
}

type Dependencies struct {
	Logger *slog.Logger
	Tokens *auth.TokenValidator
	Ledger Ledger

	RateLimiter  *security.RedisTokenBucket
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

type validators struct {
	createAccount  *security.JSONSchemaValidator
	updateAccount  *security.JSONSchemaValidator
	createEntry    *security.JSONSchemaValidator
	updateEntry    *security.JSONSchemaValidator
	filteredIDs    *security.JSONSchemaValidator
	bulkReconcile  *security.JSONSchemaValidator
	bulkUpdate     *security.JSONSchemaValidator
	selectionCount *security.JSONSchemaValidator
	createTransfer *security.JSONSchemaValidator
	createGroup    *security.JSONSchemaValidator
	createCategory *security.JSONSchemaValidator
	updateCategory *security.JSONSchemaValidator
}

func compileValidators() (*validators, error) {
	v := &validators{}
	for _, s := range []struct {
		dst    **security.JSONSchemaValidator
		schema string
	}{
		{&v.createAccount, createAccountSchema},
		{&v.updateAccount, updateAccountSchema},
		{&v.createEntry, createEntrySchema},
		{&v.updateEntry, updateEntrySchema},
		{&v.filteredIDs, filteredIDsSchema},
		{&v.bulkReconcile, bulkReconcileSchema},
		{&v.bulkUpdate, bulkUpdateSchema},
		{&v.selectionCount, selectionCountSchema},
		{&v.createTransfer, createTransferSchema},
		{&v.createGroup, createGroupSchema},
		{&v.createCategory, createCategorySchema},
		{&v.updateCategory, updateCategorySchema},
	} {
		compiled, err := security.NewJSONSchemaValidator(s.schema)
		if err != nil {
			return nil, err
		}
		*s.dst = compiled
	}
	return v, nil
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}

	v, err := compileValidators()
	if err != nil {
		return nil, err
	}

	onAuthError := func(w http.ResponseWriter, r *http.Request, status int, code string) {
		security.WriteJSONError(w, r, status, code)
	}
	read := auth.RequireScopes(onAuthError, auth.ScopeRead)
	write := auth.RequireScopes(onAuthError, auth.ScopeWrite)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Tokens, onAuthError))
		if deps.RateLimiter != nil {
			r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByCaller))
		}

		r.Route("/accounts", func(r chi.Router) {
			r.With(read).Get("/", handleListAccounts(deps))
			r.With(write, v.createAccount.Middleware).Post("/", handleCreateAccount(deps))
			r.With(read).Get("/{id}", handleGetAccount(deps))
			r.With(write, v.updateAccount.Middleware).Patch("/{id}", handleUpdateAccount(deps))
			r.With(write).Delete("/{id}", handleDeleteAccount(deps))
			r.With(write).Post("/{id}/refresh-balance", handleRefreshBalance(deps))
			r.With(write).Post("/{id}/recompute-balance", handleRecomputeBalance(deps))
		})

		r.Route("/entries", func(r chi.Router) {
			r.With(read).Get("/", handleListEntries(deps))
			r.With(write, v.createEntry.Middleware).Post("/", handleCreateEntry(deps))
			r.With(read, v.filteredIDs.Middleware).Post("/filtered-ids", handleFilteredIDs(deps))
			r.With(read, v.selectionCount.Middleware).Post("/selection-count", handleSelectionCount(deps))
			r.With(write, v.bulkUpdate.Middleware).Post("/bulk-update", handleBulkUpdate(deps))
			r.With(write, v.bulkReconcile.Middleware).Post("/bulk-reconcile", handleBulkReconcile(deps))
			r.With(read).Get("/{id}", handleGetEntry(deps))
			r.With(write, v.updateEntry.Middleware).Patch("/{id}", handleUpdateEntry(deps))
			r.With(write).Delete("/{id}", handleDeleteEntry(deps))
			r.With(write).Post("/{id}/match", handleMatchEntry(deps, true))
			r.With(write).Delete("/{id}/match", handleMatchEntry(deps, false))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.With(read).Get("/", handleListTransfers(deps))
			r.With(write, v.createTransfer.Middleware).Post("/", handleCreateTransfer(deps))
			r.With(read).Get("/{id}", handleGetTransfer(deps))
			r.With(write).Delete("/{id}", handleDeleteTransfer(deps))
		})

		r.Route("/category-groups", func(r chi.Router) {
			r.With(read).Get("/", handleListGroups(deps))
			r.With(write, v.createGroup.Middleware).Post("/", handleCreateGroup(deps))
		})

		r.Route("/categories", func(r chi.Router) {
			r.With(read).Get("/", handleListCategories(deps))
			r.With(write, v.createCategory.Middleware).Post("/", handleCreateCategory(deps))
			r.With(write, v.updateCategory.Middleware).Patch("/{id}", handleUpdateCategory(deps))
			r.With(write).Delete("/{id}", handleDeleteCategory(deps))
			r.With(read).Get("/{id}/usage", handleCategoryUsage(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}

func rateLimitKeyByCaller(r *http.Request) string {
	if ai, ok := auth.AuthInfoFromContext(r.Context()); ok && ai.CallerID != "" {
		return "caller:" + ai.CallerID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
