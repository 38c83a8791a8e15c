package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/middleware"
	"github.com/chatloom/chatloom/internal/service"
	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
)

// ThreadHandler handles thread listing, reading and deletion.
type ThreadHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(chat *service.ChatService, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		chat:   chat,
		logger: log,
	}
}

// List handles GET /api/threads, newest activity first.
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	threads, err := h.chat.ListThreads(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list threads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, threads)
}

// Get handles GET /api/threads/{threadId}, returning the message list.
// A foreign or unknown thread id is a 404; existence of another user's
// thread is never confirmed.
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	threadID := chi.URLParam(r, "threadId")

	messages, err := h.chat.GetThreadMessages(r.Context(), ownerID, threadID)
	if err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, "Thread not found or you don't have access")
			return
		}
		h.logger.Error("failed to get thread", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// Delete handles DELETE /api/threads/{threadId}.
func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	threadID := chi.URLParam(r, "threadId")

	if err := h.chat.DeleteThread(r.Context(), ownerID, threadID); err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, "Thread not found or you don't have access")
			return
		}
		h.logger.Error("failed to delete thread", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Thread deleted successfully"})
}
