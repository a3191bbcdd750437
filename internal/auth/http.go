// ABOUTME: HTTP middleware resolving the acting user from the X-User-ID header
// ABOUTME: Rejects requests without a known user and adds the user to the request context

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/ubwiyunge/internal/store"
)

// UserHeader names the request header carrying the acting user's id.
const UserHeader = "X-User-ID"

// UserLookup resolves a user id to a directory entry.
type UserLookup interface {
	Lookup(ctx context.Context, id string) (store.User, error)
}

// extractUserID reads the acting user id from the request.
// Returns the id and an error message (empty if successful).
func extractUserID(r *http.Request) (string, string) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		return "", "missing " + UserHeader + " header"
	}
	return id, ""
}

// RequireUser creates an HTTP middleware that resolves the acting user and
// adds it to the request context. Unknown users get 401.
func RequireUser(users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, errMsg := extractUserID(r)
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.Lookup(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"unknown user"}`, http.StatusUnauthorized)
				return
			}
			if err != nil {
				logger.Error("failed to resolve user", "user_id", id, "error", err)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
