package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/data"
)

// userContextKey stores the resolved internal user on the request context.
type userContextKey struct{}

// userFromContext extracts the authenticated user placed by requireAuth.
func userFromContext(ctx context.Context) (*data.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*data.User)
	return u, ok
}

// requireAuth resolves the bearer credential into an internal user and
// attaches it to the request context. Verification failures yield 401; a
// valid credential with no linked account yields 404, matching the
// gateway's Unauthenticated / IdentityNotFound split.
func (app *api) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := bearerToken(r)
		if credential == "" {
			app.writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		user, err := app.resolver.Resolve(r.Context(), credential)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrIdentityNotFound):
				app.writeError(w, http.StatusNotFound, "user not found")
			case errors.Is(err, auth.ErrUnauthenticated):
				app.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			default:
				app.log.Error("identity resolution failed", "error", err)
				app.writeError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
