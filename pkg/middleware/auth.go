package middleware

import (
	"net/http"
	"strings"

	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
)

// TokenResolver maps a presented API token to its user.
type TokenResolver interface {
	ResolveToken(token string) (*auth.User, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	resolver TokenResolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver TokenResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		user, err := m.resolver.ResolveToken(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithActor(r.Context(), auth.Actor{UserID: user.ID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
