package security

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, code string) {
	WriteError(w, r, status, code, "")
}

// WriteError writes an error body carrying a human-readable message
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	cid := CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: cid,
	})
}
