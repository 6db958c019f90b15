package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ScopeRead  = "ledger:read"
	ScopeWrite = "ledger:write"
)

// DefaultTokenTTL applies when IssueToken is given a zero ttl
const DefaultTokenTTL = 15 * time.Minute

var (
	ErrMissingSecret = errors.New("missing signing secret")
	ErrMissingCaller = errors.New("token has no subject")
	errInvalidIssuer = errors.New("invalid issuer")
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// TokenValidator verifies HS256 bearer tokens
type TokenValidator struct {
	Secret []byte
	Issuer string
}

func (v *TokenValidator) Validate(tokenString string) (*AccessTokenClaims, error) {
	if len(v.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &AccessTokenClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if v.Issuer != "" && claims.Issuer != v.Issuer {
		return nil, errInvalidIssuer
	}
	if claims.Subject == "" {
		return nil, ErrMissingCaller
	}
	return claims, nil
}

// IssueToken signs a token for subject. The ledger treats subject as an
// opaque caller id.
func IssueToken(secret []byte, issuer, subject string, scopes []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}
	if subject == "" {
		return "", ErrMissingCaller
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
