package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"quizbank/internal/app/apiresp"
	"quizbank/internal/user"

	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "auth_user"

const legacyUserHeader = "X-User-Id"

// UserLookup loads the caller named by a token or header.
type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Identify attaches the caller to the request context when it presents a
// Bearer token or an X-User-Id header. Requests without either pass through
// anonymously; bad credentials are rejected with 401.
func (h *Handler) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, present, err := h.callerID(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		u, err := h.users.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "User not found")
				return
			}
			apiresp.WriteServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u)))
	})
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !u.IsAdmin() {
			apiresp.WriteError(w, r, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) callerID(r *http.Request) (uuid.UUID, bool, error) {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		raw, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok {
			return uuid.Nil, true, ErrInvalidToken
		}
		id, err := h.tokens.Parse(strings.TrimSpace(raw))
		return id, true, err
	}
	if v := strings.TrimSpace(r.Header.Get(legacyUserHeader)); v != "" {
		id, err := uuid.Parse(v)
		return id, true, err
	}
	return uuid.Nil, false, nil
}

func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey).(*user.User)
	return u, ok && u != nil
}

// ContextWithUser injects an authenticated user into context.
// Useful for tests and internal handlers.
func ContextWithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}
