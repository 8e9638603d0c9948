package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/harborbooks/harborbooks/internal/platform/httpx"
	"github.com/harborbooks/harborbooks/internal/shared"
)

// Middleware resolves the session user and injects the user id into context.
type Middleware struct {
	Sessions *shared.SessionManager
	Logger   *slog.Logger
}

// RequireUser rejects requests without an authenticated user. Every core route
// is mounted behind this, so repository queries can rely on an owner id.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.Sessions.Resolve(r.Context(), r)
		if err != nil {
			if !errors.Is(err, shared.ErrNoSession) && m.Logger != nil {
				m.Logger.Error("resolve session", slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithUserID(r.Context(), userID)))
	})
}
