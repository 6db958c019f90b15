package security

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const CorrelationIDHeader = "X-Correlation-ID"

// maxCorrelationIDLength bounds client-supplied ids echoed into logs and headers
const maxCorrelationIDLength = 128

type correlationIDKey struct{}

// CorrelationID reuses a well-formed X-Correlation-ID from the client or
// generates one, and echoes it on the response
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if !validCorrelationID(cid) {
			cid = uuid.NewString()
		}

		ctx := WithCorrelationID(r.Context(), cid)
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if v := ctx.Value(correlationIDKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func validCorrelationID(s string) bool {
	if s == "" || len(s) > maxCorrelationIDLength {
		return false
	}
	for _, c := range s {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
