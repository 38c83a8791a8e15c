// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/middleware"
	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/internal/service"
	"github.com/chatloom/chatloom/internal/session"
	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *session.Manager
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService, sessions *session.Manager, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		logger:   log,
	}
}

// Register handles POST /api/auth/register. A successful registration
// logs the user in immediately.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Emptiness is the service's ErrMissingFields; the validator only
	// rejects oversized or malformed usernames.
	if req.Username != "" {
		if err := middleware.ValidateUsername(req.Username); err != nil {
			writeMsg(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			writeMsg(w, http.StatusBadRequest, "Please enter all required fields")
		case errors.Is(err, store.ErrUsernameTaken):
			writeMsg(w, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, store.ErrEmailTaken):
			writeMsg(w, http.StatusBadRequest, "Email already registered.")
		default:
			h.logger.Error("registration failed", zap.Error(err))
			writeMsg(w, http.StatusInternalServerError, "Server error during registration.")
		}
		return
	}

	if _, err := h.sessions.Issue(w, user.ID); err != nil {
		h.logger.Error("session issue failed after registration", zap.Error(err))
		writeMsg(w, http.StatusInternalServerError, "Registration successful, but automatic login failed.")
		return
	}

	writeJSON(w, http.StatusCreated, model.AuthResponse{
		Msg:  "User registered and logged in successfully",
		User: user.Public(),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeMsg(w, http.StatusUnauthorized, "Invalid credentials.")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeMsg(w, http.StatusInternalServerError, "Authentication error.")
		return
	}

	if _, err := h.sessions.Issue(w, user.ID); err != nil {
		h.logger.Error("session issue failed", zap.Error(err))
		writeMsg(w, http.StatusInternalServerError, "Could not log in user after authentication.")
		return
	}

	writeJSON(w, http.StatusOK, model.AuthResponse{
		Msg:  "Logged in successfully",
		User: user.Public(),
	})
}

// Logout handles GET /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		writeMsg(w, http.StatusInternalServerError, "Failed to destroy session")
		return
	}
	writeMsg(w, http.StatusOK, "Logged out successfully")
}

// CurrentUser handles GET /api/auth/current_user.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeMsg(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, model.CurrentUserResponse{User: user.Public()})
}
