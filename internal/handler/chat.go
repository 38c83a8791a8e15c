package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/llm"
	"github.com/chatloom/chatloom/internal/middleware"
	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/internal/service"
	"github.com/chatloom/chatloom/pkg/logger"
)

// ChatHandler handles the exchange endpoint.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log,
	}
}

// Send handles POST /api/chat: one user message in, one AI answer out,
// both appended to the resolved (or freshly created) thread.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidatePrompt(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, thread, err := h.chat.HandleExchange(r.Context(), ownerID, req.ThreadID, req.Messages)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, "message text cannot be empty")
		case errors.Is(err, llm.ErrUpstream):
			writeError(w, http.StatusBadGateway, "AI service unavailable. Please try again later.")
		default:
			h.logger.Error("exchange failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{
		Answer: answer,
		Thread: thread,
	})
}
