package security

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// SessionCookieName is the name of the signed session cookie.
const SessionCookieName = "agrodoc_session"

const idKey = "sid"

// SessionStore keeps the server-side session id in a signed cookie. The
// session state itself never leaves the server.
type SessionStore struct {
	store *sessions.CookieStore
}

func NewSessionStore(secret string, ttl time.Duration, secure bool) *SessionStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

// SessionID returns the id stored in the request's cookie, if any. A cookie
// that fails verification is treated as absent.
func (s *SessionStore) SessionID(r *http.Request) (string, bool) {
	sess, err := s.store.Get(r, SessionCookieName)
	if err != nil {
		return "", false
	}
	id, ok := sess.Values[idKey].(string)
	return id, ok && id != ""
}

// SetSessionID writes id into the response cookie.
func (s *SessionStore) SetSessionID(w http.ResponseWriter, r *http.Request, id string) error {
	sess, _ := s.store.Get(r, SessionCookieName)
	sess.Values[idKey] = id
	return sess.Save(r, w)
}

// Clear expires the cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, SessionCookieName)
	sess.Options.MaxAge = -1
	delete(sess.Values, idKey)
	return sess.Save(r, w)
}
