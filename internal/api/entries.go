package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ledger-core/internal/ledger"
)

// entryView is an entry as rendered to clients, with its category and
// reconciliation status resolved
type entryView struct {
	*ledger.Entry
	EffectiveCategory ledger.EffectiveCategory   `json:"effective_category"`
	Status            ledger.ReconciliationStatus `json:"reconciliation_status"`
}

func newEntryView(e *ledger.Entry, catalog *ledger.Catalog) entryView {
	return entryView{
		Entry:             e,
		EffectiveCategory: ledger.ResolveCategory(e, catalog),
		Status:            e.ReconciliationStatus(),
	}
}

type entryResponse struct {
	CorrelationID string    `json:"correlation_id"`
	Entry         entryView `json:"entry"`
}

type listEntriesResponse struct {
	CorrelationID string      `json:"correlation_id"`
	Entries       []entryView `json:"entries"`
	HasMore       bool        `json:"has_more"`
	NextCursor    string      `json:"next_cursor,omitempty"`
	TotalCount    int         `json:"total_count"`
}

type updateEntryBody struct {
	Description   *string           `json:"description"`
	EffectiveDate *string           `json:"effective_date"`
	CategoryID    nullable[string]  `json:"category_id"`
	Amount        *amountText       `json:"amount"`
	Direction     *ledger.Direction `json:"direction"`
	AccountID     *string           `json:"account_id"`
}

type filteredIDsBody struct {
	Filter ledger.EntryFilter `json:"filter"`
}

type bulkReconcileBody struct {
	EntryIDs []string               `json:"entry_ids"`
	Action   ledger.ReconcileAction `json:"action"`
}

type bulkUpdateBody struct {
	Selection ledger.SelectionDescriptor `json:"selection"`
	Changes   struct {
		CategoryID           nullable[string]            `json:"category_id"`
		ReconciliationStatus ledger.ReconciliationStatus `json:"reconciliation_status"`
	} `json:"changes"`
}

func (b bulkUpdateBody) changeset() ledger.Changeset {
	cs := ledger.Changeset{ReconciliationStatus: b.Changes.ReconciliationStatus}
	if id := b.Changes.CategoryID.clearable(); id != nil {
		cs.Category = &ledger.CategoryChange{CategoryID: *id}
	}
	return cs
}

type selectionCountBody struct {
	Selection ledger.SelectionDescriptor `json:"selection"`
}

type selectionCountResponse struct {
	CorrelationID string `json:"correlation_id"`
	Count         int    `json:"count"`
}

// entryResult renders one entry with the current catalog
func entryResult(deps Dependencies, w http.ResponseWriter, r *http.Request, status int, e *ledger.Entry) {
	catalog, err := deps.Ledger.Catalog(r.Context())
	if err != nil {
		writeLedgerError(w, r, deps.Logger, err)
		return
	}
	writeJSON(w, r, status, entryResponse{CorrelationID: cid(r), Entry: newEntryView(e, catalog)})
}

func handleListEntries(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter, err := entryFilterFromQuery(q)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		limit, err := queryLimit(q)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		page, err := deps.Ledger.ListEntries(r.Context(), filter, q.Get("cursor"), limit)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		catalog, err := deps.Ledger.Catalog(r.Context())
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		views := make([]entryView, len(page.Entries))
		for i, e := range page.Entries {
			views[i] = newEntryView(e, catalog)
		}
		writeJSON(w, r, http.StatusOK, listEntriesResponse{
			CorrelationID: cid(r),
			Entries:       views,
			HasMore:       page.HasMore,
			NextCursor:    page.NextCursor,
			TotalCount:    page.TotalCount,
		})
	}
}

func handleCreateEntry(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createEntryBody
		if !decodeJSON(w, r, &body) {
			return
		}
		req, err := body.request()
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		entry, err := deps.Ledger.CreateEntry(r.Context(), req)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		entryResult(deps, w, r, http.StatusCreated, entry)
	}
}

func handleGetEntry(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := deps.Ledger.GetEntry(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		entryResult(deps, w, r, http.StatusOK, entry)
	}
}

func handleUpdateEntry(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateEntryBody
		if !decodeJSON(w, r, &body) {
			return
		}
		var amount *decimal.Decimal
		if body.Amount != nil {
			d, err := body.Amount.parse()
			if err != nil {
				writeLedgerError(w, r, deps.Logger, err)
				return
			}
			amount = &d
		}

		entry, err := deps.Ledger.UpdateEntry(r.Context(), chi.URLParam(r, "id"), ledger.UpdateEntryRequest{
			Description:   body.Description,
			EffectiveDate: body.EffectiveDate,
			CategoryID:    body.CategoryID.clearable(),
			Amount:        amount,
			Direction:     body.Direction,
			AccountID:     body.AccountID,
		})
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		entryResult(deps, w, r, http.StatusOK, entry)
	}
}

func handleDeleteEntry(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Ledger.DeleteEntry(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func handleMatchEntry(deps Dependencies, matched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var (
			entry *ledger.Entry
			err   error
		)
		if matched {
			entry, err = deps.Ledger.MarkMatched(r.Context(), id)
		} else {
			entry, err = deps.Ledger.Unmatch(r.Context(), id)
		}
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		entryResult(deps, w, r, http.StatusOK, entry)
	}
}

func handleFilteredIDs(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body filteredIDsBody
		if !decodeJSON(w, r, &body) {
			return
		}

		res, err := deps.Ledger.GetFilteredIDs(r.Context(), body.Filter)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func handleBulkReconcile(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body bulkReconcileBody
		if !decodeJSON(w, r, &body) {
			return
		}

		res, err := deps.Ledger.BulkReconcile(r.Context(), body.EntryIDs, body.Action)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func handleBulkUpdate(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body bulkUpdateBody
		if !decodeJSON(w, r, &body) {
			return
		}

		res, err := deps.Ledger.BulkUpdate(r.Context(), body.Selection, body.changeset())
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func handleSelectionCount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body selectionCountBody
		if !decodeJSON(w, r, &body) {
			return
		}

		n, err := deps.Ledger.CountSelection(r.Context(), body.Selection)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, selectionCountResponse{CorrelationID: cid(r), Count: n})
	}
}
