package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/security"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	cid := security.CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForCode maps ledger error codes onto HTTP statuses. Malformed input
// is a 400; well-formed requests that break a ledger rule are a 422.
func statusForCode(c ledger.Code) int {
	switch c {
	case ledger.CodeNotFound:
		return http.StatusNotFound
	case ledger.CodeInvalidAmount, ledger.CodeInvalidInput, ledger.CodeInvalidCursor:
		return http.StatusBadRequest
	case ledger.CodeSameAccount, ledger.CodeImmutableField, ledger.CodeEmptySelection, ledger.CodeNoChanges:
		return http.StatusUnprocessableEntity
	case ledger.CodeReferencedEntity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError renders err using its ledger code. Unclassified errors
// are logged and reported as internal_error without detail.
func writeLedgerError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	code := ledger.CodeOf(err)
	if code == "" {
		l.Error("request failed",
			"cid", security.CorrelationIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	msg := err.Error()
	var le *ledger.Error
	var be *ledger.BatchError
	if !errors.As(err, &be) && errors.As(err, &le) {
		msg = le.Error()
	}
	security.WriteError(w, r, statusForCode(code), string(code), msg)
}

// decodeJSON decodes a body already checked by a schema middleware
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		security.WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
