package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
)

var (
	// ErrMissingFields is returned when registration lacks required fields.
	ErrMissingFields = errors.New("username and password are required")

	// ErrInvalidCredentials covers both unknown username and wrong
	// password; callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const bcryptCost = 10

// AuthService handles registration and credential verification.
type AuthService struct {
	users  *store.UserStore
	logger *logger.Logger
	now    func() time.Time
}

// NewAuthService creates an auth service.
func NewAuthService(users *store.UserStore, log *logger.Logger) *AuthService {
	return &AuthService{
		users:  users,
		logger: log,
		now:    time.Now,
	}
}

// Register creates a new account. Duplicate username/email surface as
// store.ErrUsernameTaken / store.ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns the matching user. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("password mismatch", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CurrentUser loads the user behind an authenticated session.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(userID)
}
