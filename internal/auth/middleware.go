package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// contextKey is a custom type for context keys
type contextKey string

// SessionContextKey is the key for storing session claims in context
const SessionContextKey contextKey = "session"

// RevocationChecker reports whether a session token has been revoked,
// either individually by token id or through a user-level revocation
// covering every token issued before the ban. Checked on every request.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	IsUserRevoked(ctx context.Context, uid string, issuedAt time.Time) (bool, error)
}

// Middleware validates session tokens, rejects revoked sessions and injects
// claims into the request context. Revocation-store failures fail closed:
// a banned user must never slip through because the blacklist was briefly
// unreadable.
func Middleware(tm *TokenManager, revocations RevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			if revocations != nil && claims.ID != "" {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					http.Error(w, "unable to verify session status", http.StatusServiceUnavailable)
					return
				}
				if revoked {
					http.Error(w, "session has been revoked", http.StatusUnauthorized)
					return
				}

				issuedAt := time.Time{}
				if claims.IssuedAt != nil {
					issuedAt = claims.IssuedAt.Time
				}
				revoked, err = revocations.IsUserRevoked(r.Context(), claims.UID, issuedAt)
				if err != nil {
					http.Error(w, "unable to verify session status", http.StatusServiceUnavailable)
					return
				}
				if revoked {
					http.Error(w, "session has been revoked", http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator allows only sessions carrying the operator role. Mount
// after Middleware.
func RequireOperator() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := SessionFromContext(r.Context())
			if claims == nil || claims.Role != "operator" {
				http.Error(w, "operator access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext extracts the session claims set by Middleware, or nil.
func SessionFromContext(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(SessionContextKey).(*SessionClaims)
	return claims
}
