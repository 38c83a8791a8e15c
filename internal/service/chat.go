// Package service provides business logic for the chat backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/events"
	"github.com/chatloom/chatloom/internal/llm"
	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
	"github.com/chatloom/chatloom/pkg/metrics"
)

// ErrStorage marks persistence failures. When it follows a successful AI
// call the answer is already paid for; the handler still reports failure
// so no computed answer is ever silently dropped.
var ErrStorage = errors.New("storage failure")

const defaultTitle = "New Chat"

// ThreadStore is the persistence the orchestrator needs. Implemented by
// *store.ThreadStore.
type ThreadStore interface {
	Save(thread *model.Thread) error
	Get(ownerID, threadID string) (*model.Thread, error)
	List(ownerID string) ([]model.Thread, error)
	Delete(ownerID, threadID string) error
}

// ChatService orchestrates one exchange: resolve the thread, call the AI
// provider, append the user/model message pair and persist.
type ChatService struct {
	threads   ThreadStore
	ai        llm.Client
	publisher *events.Publisher
	logger    *logger.Logger
	locks     *keyedMutex

	now   func() time.Time
	newID func() string
}

// NewChatService creates a chat service. publisher may be nil.
func NewChatService(threads ThreadStore, ai llm.Client, publisher *events.Publisher, log *logger.Logger) *ChatService {
	return &ChatService{
		threads:   threads,
		ai:        ai,
		publisher: publisher,
		logger:    log,
		locks:     newKeyedMutex(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// HandleExchange produces one AI answer for one user message, durably
// attached to the right thread.
//
// A supplied thread id that does not resolve for this owner (stale,
// deleted, or foreign) falls through to creating a fresh thread instead
// of erroring, which self-heals stale client state. The AI call happens
// before any persistence, so a failed call leaves storage untouched.
func (s *ChatService) HandleExchange(ctx context.Context, ownerID, threadID, text string) (string, *model.Thread, error) {
	var thread *model.Thread

	if threadID != "" {
		// Serialize concurrent exchanges on the same thread; the lock
		// covers resolve through persist so the read-modify-write cannot
		// lose an update.
		unlock := s.locks.Lock(ownerID + "/" + threadID)
		defer unlock()

		existing, err := s.threads.Get(ownerID, threadID)
		switch {
		case err == nil:
			thread = existing
		case errors.Is(err, store.ErrThreadNotFound):
			// fall through to creation
		default:
			metrics.RecordExchange("storage_error")
			return "", nil, fmt.Errorf("%w: resolve thread: %v", ErrStorage, err)
		}
	}

	answer, err := s.ai.Complete(ctx, text)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyPrompt) {
			metrics.RecordExchange("invalid_input")
			return "", nil, err
		}
		metrics.RecordExchange("upstream_error")
		s.logger.Error("ai completion failed",
			zap.String("owner_id", ownerID),
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return "", nil, err
	}

	now := s.now()
	created := false
	if thread == nil {
		thread = &model.Thread{
			ThreadID:  s.newID(),
			OwnerID:   ownerID,
			Title:     deriveTitle(answer),
			Messages:  []model.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
	}

	thread.Append(model.RoleUser, text, now)
	thread.Append(model.RoleModel, answer, now)

	if err := s.threads.Save(thread); err != nil {
		metrics.RecordExchange("storage_error")
		// The answer was computed but could not be saved; log enough for
		// an operator to account for the lost work.
		s.logger.Error("persist failed after successful ai call",
			zap.String("owner_id", ownerID),
			zap.String("thread_id", thread.ThreadID),
			zap.Int("answer_chars", len(answer)),
			zap.Error(err),
		)
		return "", nil, fmt.Errorf("%w: save thread: %v", ErrStorage, err)
	}

	if created {
		metrics.ThreadsCreatedTotal.Inc()
	}
	metrics.RecordExchange("success")
	s.publisher.ExchangeCompleted(model.ExchangeEvent{
		ThreadID:     thread.ThreadID,
		OwnerID:      ownerID,
		NewThread:    created,
		PromptChars:  len(text),
		AnswerChars:  len(answer),
		MessageCount: len(thread.Messages),
	})

	return answer, thread, nil
}

// ListThreads returns the owner's threads, most recently updated first.
func (s *ChatService) ListThreads(ctx context.Context, ownerID string) ([]model.Thread, error) {
	return s.threads.List(ownerID)
}

// GetThreadMessages returns the message list of an owned thread.
func (s *ChatService) GetThreadMessages(ctx context.Context, ownerID, threadID string) ([]model.Message, error) {
	thread, err := s.threads.Get(ownerID, threadID)
	if err != nil {
		return nil, err
	}
	return thread.Messages, nil
}

// DeleteThread removes an owned thread.
func (s *ChatService) DeleteThread(ctx context.Context, ownerID, threadID string) error {
	return s.threads.Delete(ownerID, threadID)
}

// deriveTitle takes the first four whitespace-separated tokens of the
// first answer; empty answers get the default title.
func deriveTitle(answer string) string {
	words := strings.Fields(answer)
	if len(words) == 0 {
		return defaultTitle
	}
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}
