package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ledger-core/internal/ledger"
)

type createGroupBody struct {
	Name string              `json:"name"`
	Type ledger.CategoryType `json:"type"`
}

type createCategoryBody struct {
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
}

type groupResponse struct {
	CorrelationID string                `json:"correlation_id"`
	Group         *ledger.CategoryGroup `json:"group"`
}

type listGroupsResponse struct {
	CorrelationID string                 `json:"correlation_id"`
	Groups        []ledger.CategoryGroup `json:"groups"`
}

type categoryResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Category      *ledger.Category `json:"category"`
}

type listCategoriesResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Categories    []ledger.Category `json:"categories"`
}

func handleListGroups(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := deps.Ledger.ListGroups(r.Context())
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		if groups == nil {
			groups = []ledger.CategoryGroup{}
		}
		writeJSON(w, r, http.StatusOK, listGroupsResponse{CorrelationID: cid(r), Groups: groups})
	}
}

func handleCreateGroup(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createGroupBody
		if !decodeJSON(w, r, &body) {
			return
		}

		g, err := deps.Ledger.CreateGroup(r.Context(), body.Name, body.Type)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, groupResponse{CorrelationID: cid(r), Group: g})
	}
}

func handleListCategories(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := deps.Ledger.ListByType(r.Context(), ledger.CategoryType(r.URL.Query().Get("type")))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		if cats == nil {
			cats = []ledger.Category{}
		}
		writeJSON(w, r, http.StatusOK, listCategoriesResponse{CorrelationID: cid(r), Categories: cats})
	}
}

func handleCreateCategory(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createCategoryBody
		if !decodeJSON(w, r, &body) {
			return
		}

		c, err := deps.Ledger.CreateCategory(r.Context(), body.Name, body.GroupID)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, categoryResponse{CorrelationID: cid(r), Category: c})
	}
}

func handleUpdateCategory(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ledger.UpdateCategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := deps.Ledger.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, categoryResponse{CorrelationID: cid(r), Category: c})
	}
}

func handleDeleteCategory(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Ledger.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCategoryUsage(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := deps.Ledger.CategoryUsage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, usage)
	}
}
