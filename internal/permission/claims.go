package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims of a bridge caller.
type Claims struct {
	StorageWrite bool `json:"storage_write"`
	jwt.RegisteredClaims
}

// IssueToken signs claims for subject with the HMAC secret.
func IssueToken(secret []byte, subject string, storageWrite bool, ttl time.Duration) (string, error) {
	claims := Claims{
		StorageWrite: storageWrite,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken verifies tokenString and returns its claims.
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// ClaimsAuthorizer grants storage writes to callers whose token says so. It
// has nobody to prompt, so a request is answered from the token right away.
type ClaimsAuthorizer struct {
	required bool
}

func NewClaimsAuthorizer(required bool) *ClaimsAuthorizer {
	return &ClaimsAuthorizer{required: required}
}

func (a *ClaimsAuthorizer) Required(context.Context) bool {
	return a.required
}

func (a *ClaimsAuthorizer) Granted(ctx context.Context) bool {
	if !a.required {
		return true
	}
	claims, ok := ClaimsFromContext(ctx)
	return ok && claims.StorageWrite
}

func (a *ClaimsAuthorizer) Request(ctx context.Context, _ string, resume func(bool)) error {
	resume(a.Granted(ctx))
	return nil
}
