// Package session implements cookie-backed server-side sessions. The
// cookie carries only an opaque token; the authenticated identity lives in
// the store, so logout revokes access immediately.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chatloom/chatloom/internal/model"
)

// ErrNoSession is returned when the request carries no valid session.
// Storage faults are returned as distinct errors so callers can tell an
// unauthenticated request from a broken store.
var ErrNoSession = errors.New("no valid session")

// Store is the persistence needed by the manager. Get returns (nil, nil)
// for unknown or expired tokens.
type Store interface {
	Put(sess *model.Session) error
	Get(token string) (*model.Session, error)
	Delete(token string) error
}

// Manager issues, resolves and clears login sessions.
type Manager struct {
	sessions   Store
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewManager creates a session manager.
func NewManager(sessions Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		sessions:   sessions,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		now:        time.Now,
	}
}

// Issue creates a session for userID and sets the session cookie.
func (m *Manager) Issue(w http.ResponseWriter, userID string) (*model.Session, error) {
	now := m.now()
	sess := &model.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.sessions.Put(sess); err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// Resolve returns the user id behind the request's session cookie, or
// ErrNoSession when the cookie is missing, unknown or expired. Any other
// error is a storage fault, not an authentication decision.
func (m *Manager) Resolve(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}
	sess, err := m.sessions.Get(cookie.Value)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	if sess == nil {
		return "", ErrNoSession
	}
	return sess.UserID, nil
}

// Clear deletes the request's session record and expires the cookie.
// Clearing an absent session is not an error.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		if err := m.sessions.Delete(cookie.Value); err != nil {
			return err
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
