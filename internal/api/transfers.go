package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ledger-core/internal/ledger"
)

// transferView renders both sides of a transfer. A side removed on its own
// leaves the other orphaned and the missing side null.
type transferView struct {
	ID  string     `json:"transfer_id"`
	Out *entryView `json:"entry_out"`
	In  *entryView `json:"entry_in"`
}

func newTransferView(t *ledger.Transfer, catalog *ledger.Catalog) transferView {
	v := transferView{ID: t.ID}
	if t.Out != nil {
		ev := newEntryView(t.Out, catalog)
		v.Out = &ev
	}
	if t.In != nil {
		ev := newEntryView(t.In, catalog)
		v.In = &ev
	}
	return v
}

type transferResponse struct {
	CorrelationID string       `json:"correlation_id"`
	Transfer      transferView `json:"transfer"`
}

type listTransfersResponse struct {
	CorrelationID string         `json:"correlation_id"`
	Transfers     []transferView `json:"transfers"`
}

func transferResult(deps Dependencies, w http.ResponseWriter, r *http.Request, status int, t *ledger.Transfer) {
	catalog, err := deps.Ledger.Catalog(r.Context())
	if err != nil {
		writeLedgerError(w, r, deps.Logger, err)
		return
	}
	writeJSON(w, r, status, transferResponse{CorrelationID: cid(r), Transfer: newTransferView(t, catalog)})
}

func handleListTransfers(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transfers, err := deps.Ledger.ListTransfers(r.Context(), r.URL.Query().Get("account_id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		catalog, err := deps.Ledger.Catalog(r.Context())
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		views := make([]transferView, len(transfers))
		for i, t := range transfers {
			views[i] = newTransferView(t, catalog)
		}
		writeJSON(w, r, http.StatusOK, listTransfersResponse{CorrelationID: cid(r), Transfers: views})
	}
}

func handleCreateTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createTransferBody
		if !decodeJSON(w, r, &body) {
			return
		}
		req, err := body.request()
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		t, err := deps.Ledger.CreateTransfer(r.Context(), req)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		transferResult(deps, w, r, http.StatusCreated, t)
	}
}

func handleGetTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := deps.Ledger.GetTransfer(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		transferResult(deps, w, r, http.StatusOK, t)
	}
}

func handleDeleteTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Ledger.DeleteTransfer(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}
