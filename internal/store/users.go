package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/model"
)

var (
	// ErrUsernameTaken is returned when the username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned for lookups of unknown users.
	ErrUserNotFound = errors.New("user not found")
)

// UserStore persists user records with unique username/email indexes.
type UserStore struct {
	store *Store

	// Serializes Create so the check-then-write on the unique indexes
	// cannot interleave between two registrations.
	mu sync.Mutex
}

// NewUserStore creates a user store on top of the shared Store.
func NewUserStore(s *Store) *UserStore {
	return &UserStore{store: s}
}

// Create inserts a new user. Username and email (when present) must be
// unique; violations return ErrUsernameTaken / ErrEmailTaken.
func (us *UserStore) Create(user *model.User) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	nameKey := []byte(userByNamePrefix + normalize(user.Username))
	if existing, err := us.store.get(nameKey); err != nil {
		return fmt.Errorf("username index lookup: %w", err)
	} else if existing != nil {
		return ErrUsernameTaken
	}

	var emailKey []byte
	if user.Email != "" {
		emailKey = []byte(userByEmailPrefix + normalize(user.Email))
		if existing, err := us.store.get(emailKey); err != nil {
			return fmt.Errorf("email index lookup: %w", err)
		} else if existing != nil {
			return ErrEmailTaken
		}
	}

	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	// The document and its index keys commit atomically; a crash cannot
	// leave an orphaned document or a dangling index entry.
	batch := us.store.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(userByIDPrefix+user.ID), doc, nil); err != nil {
		return err
	}
	if err := batch.Set(nameKey, []byte(user.ID), nil); err != nil {
		return err
	}
	if emailKey != nil {
		if err := batch.Set(emailKey, []byte(user.ID), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}

	us.store.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return nil
}

// GetByID returns the user with the given id, or ErrUserNotFound.
func (us *UserStore) GetByID(id string) (*model.User, error) {
	doc, err := us.store.get([]byte(userByIDPrefix + id))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrUserNotFound
	}
	var user model.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// GetByUsername resolves the username index and returns the user, or
// ErrUserNotFound.
func (us *UserStore) GetByUsername(username string) (*model.User, error) {
	id, err := us.store.get([]byte(userByNamePrefix + normalize(username)))
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrUserNotFound
	}
	return us.GetByID(string(id))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
