package model

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Msg  string     `json:"msg"`
	User PublicUser `json:"user"`
}

// CurrentUserResponse is returned by GET /api/auth/current_user.
type CurrentUserResponse struct {
	User PublicUser `json:"user"`
}

// ChatRequest is the body of POST /api/chat. Messages carries the user's
// prompt text; ThreadID is empty for a brand new conversation.
type ChatRequest struct {
	ThreadID string `json:"threadId,omitempty"`
	Messages string `json:"messages"`
}

// ChatResponse is returned by POST /api/chat. Field casing mirrors the
// shape the web client consumes.
type ChatResponse struct {
	Answer string  `json:"Answer"`
	Thread *Thread `json:"thread"`
}

// ExchangeEvent is published after a successful exchange.
type ExchangeEvent struct {
	ThreadID     string `json:"thread_id"`
	OwnerID      string `json:"owner_id"`
	NewThread    bool   `json:"new_thread"`
	PromptChars  int    `json:"prompt_chars"`
	AnswerChars  int    `json:"answer_chars"`
	MessageCount int    `json:"message_count"`
}
