package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/pkg/metrics"
)

// SessionStore persists server-side login sessions keyed by token. It
// owns the active-sessions gauge: Put raises it, Delete lowers it only
// when a record was actually removed, so lazy expiry and logout both
// account correctly.
type SessionStore struct {
	store *Store
	now   func() time.Time
}

// NewSessionStore creates a session store on top of the shared Store.
func NewSessionStore(s *Store) *SessionStore {
	return &SessionStore{store: s, now: time.Now}
}

// Put stores a session document.
func (ss *SessionStore) Put(sess *model.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := ss.store.set([]byte(sessionPrefix+sess.Token), doc); err != nil {
		return err
	}
	metrics.SessionsActive.Inc()
	return nil
}

// Get returns the session for a token. Expired or unknown tokens yield
// (nil, nil); expired records are deleted on the way out.
func (ss *SessionStore) Get(token string) (*model.Session, error) {
	doc, err := ss.store.get([]byte(sessionPrefix + token))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	var sess model.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Expired(ss.now()) {
		_ = ss.Delete(token)
		return nil, nil
	}
	return &sess, nil
}

// Delete removes a session record. Deleting an absent token is not an
// error and does not touch the gauge.
func (ss *SessionStore) Delete(token string) error {
	key := []byte(sessionPrefix + token)
	doc, err := ss.store.get(key)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err := ss.store.delete(key); err != nil {
		return err
	}
	metrics.SessionsActive.Dec()
	return nil
}
