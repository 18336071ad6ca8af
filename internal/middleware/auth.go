package middleware

import (
	"net/http"
	"strings"

	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
)

// Auth rejects requests without a valid bearer token and stores the token
// claims in the request context. Browsers cannot set headers on a WebSocket
// handshake, so a "token" query parameter is accepted as well.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			claims, err := permission.ParseToken(secret, tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(permission.WithClaims(r.Context(), claims)))
		})
	}
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token")
	}

	// Format should be: "Bearer {token}"
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
