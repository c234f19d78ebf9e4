// Package middleware attaches the browsing session to each request and
// enforces the login requirement on protected routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"agrodoc/internal/metrics"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
)

type contextKey struct{}

// AccountPath is where anonymous callers of protected routes are sent.
const AccountPath = "/api/pages/account"

// SessionFrom returns the session attached by Sessions.
func SessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(contextKey{}).(*session.Session)
	return s
}

// WithSession returns a copy of r carrying s, for tests and internal callers.
func WithSession(r *http.Request, s *session.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), contextKey{}, s))
}

// Sessions resolves the session cookie to a server-side session, creating a
// new session and cookie when there is none or the old one expired.
func Sessions(store *session.Store, cookies *security.SessionStore, m *metrics.Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s *session.Session
			if id, ok := cookies.SessionID(r); ok {
				s, _ = store.Get(id)
			}
			if s == nil {
				s = store.Create()
				if err := cookies.SetSessionID(w, r, s.ID()); err != nil {
					log.Error("failed to set session cookie", "error", err)
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				m.SetActiveSessions(store.Count())
			}
			next.ServeHTTP(w, WithSession(r, s))
		})
	}
}

// RequireAuth redirects anonymous callers to the account page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFrom(r)
		if s == nil || !s.Snapshot().Authenticated() {
			http.Redirect(w, r, AccountPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
