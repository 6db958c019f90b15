package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/ledger-core/internal/ledger"
)

type authInfoKey struct{}

type AuthInfo struct {
	CallerID string
	Scopes   map[string]struct{}
}

func (ai *AuthInfo) HasScope(s string) bool {
	_, ok := ai.Scopes[s]
	return ok
}

func AuthInfoFromContext(ctx context.Context) (*AuthInfo, bool) {
	ai, ok := ctx.Value(authInfoKey{}).(*AuthInfo)
	return ai, ok
}

// WithClaims scopes ctx to a validated token's subject and scopes
func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	scopes := make(map[string]struct{}, len(claims.Scopes))
	for _, s := range claims.Scopes {
		scopes[s] = struct{}{}
	}
	ctx = context.WithValue(ctx, authInfoKey{}, &AuthInfo{CallerID: claims.Subject, Scopes: scopes})
	return ledger.WithCaller(ctx, claims.Subject)
}

// BearerToken extracts the token from an Authorization value
func BearerToken(authz string) (string, bool) {
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(authz[len("Bearer "):]), true
}

// ErrorWriter renders an auth failure
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code string)

// Authenticate requires a valid bearer token and scopes the request context
// to its subject
func Authenticate(v *TokenValidator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := v.Validate(token)
			if err != nil {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func RequireScopes(onError ErrorWriter, required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ai, ok := AuthInfoFromContext(r.Context())
			if !ok {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			for _, s := range required {
				if !ai.HasScope(s) {
					onError(w, r, http.StatusForbidden, "forbidden")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
