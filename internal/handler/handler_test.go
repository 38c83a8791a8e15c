package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/internal/llm"
	"github.com/chatloom/chatloom/internal/middleware"
	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/internal/service"
	"github.com/chatloom/chatloom/internal/session"
	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
)

// stubAI lets a test swap the answer or error between requests.
type stubAI struct {
	answer string
	err    error
}

func (s *stubAI) Name() string { return "stub" }

func (s *stubAI) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

// newTestServer wires the same router main builds, minus rate limiting
// and metrics.
func newTestServer(t *testing.T, ai llm.Client) *httptest.Server {
	return newTestServerThreads(t, ai, nil)
}

// newTestServerThreads additionally wraps the thread store, for tests
// that inject storage faults.
func newTestServerThreads(t *testing.T, ai llm.Client, wrap func(service.ThreadStore) service.ThreadStore) *httptest.Server {
	t.Helper()

	log := logger.NewNop()
	db, err := store.Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var threads service.ThreadStore = store.NewThreadStore(db)
	if wrap != nil {
		threads = wrap(threads)
	}

	sessions := session.NewManager(store.NewSessionStore(db), "test_session", time.Hour, false)
	authSvc := service.NewAuthService(store.NewUserStore(db), log)
	chatSvc := service.NewChatService(threads, ai, nil, log)

	authHandler := NewAuthHandler(authSvc, sessions, log)
	threadHandler := NewThreadHandler(chatSvc, log)
	chatHandler := NewChatHandler(chatSvc, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(sessions))
				r.Get("/logout", authHandler.Logout)
				r.Get("/current_user", authHandler.CurrentUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessions))

			r.Get("/threads", threadHandler.List)
			r.Get("/threads/{threadId}", threadHandler.Get)
			r.Delete("/threads/{threadId}", threadHandler.Delete)

			r.Post("/chat", chatHandler.Send)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// newClient returns an http client with a cookie jar, like a browser.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func register(t *testing.T, client *http.Client, baseURL, username, password string) {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, baseURL+"/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"username": "alice",
		"password": "s3cret",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body model.AuthResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "User registered and logged in successfully", body.Msg)
	assert.Equal(t, "alice", body.User.Username)

	// The session cookie lets the next request through without login.
	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/current_user", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var current model.CurrentUserResponse
	decodeBody(t, resp, &current)
	assert.Equal(t, "alice", current.User.Username)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})
	register(t, newClient(t), srv.URL, "alice", "pw")

	resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"username": "alice",
		"password": "other",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Username already exists", body["msg"])
}

func TestRegisterMissingFields(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})

	resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"username": "alice",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Please enter all required fields", body["msg"])
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})
	register(t, newClient(t), srv.URL, "alice", "s3cret")

	resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid credentials.", body["msg"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})
	client := &http.Client{} // no jar, no cookie

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/threads"},
		{http.MethodGet, "/api/threads/some-id"},
		{http.MethodDelete, "/api/threads/some-id"},
		{http.MethodPost, "/api/chat"},
		{http.MethodGet, "/api/auth/current_user"},
		{http.MethodGet, "/api/auth/logout"},
	} {
		resp := doJSON(t, client, route.method, srv.URL+route.path, nil)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.path)
		assert.Equal(t, "Please log in to view this resource", body["msg"], route.path)
	}
}

func TestChatCreatesAndContinuesThread(t *testing.T) {
	ai := &stubAI{answer: "Go is a compiled language designed at Google."}
	srv := newTestServer(t, ai)
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{
		Messages: "what is go?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first model.ChatResponse
	decodeBody(t, resp, &first)
	assert.Equal(t, ai.answer, first.Answer)
	require.NotNil(t, first.Thread)
	assert.Equal(t, "Go is a compiled", first.Thread.Title)
	assert.Len(t, first.Thread.Messages, 2)

	// A follow-up with the returned id lands in the same thread.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{
		ThreadID: first.Thread.ThreadID,
		Messages: "who designed it?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second model.ChatResponse
	decodeBody(t, resp, &second)
	assert.Equal(t, first.Thread.ThreadID, second.Thread.ThreadID)
	assert.Len(t, second.Thread.Messages, 4)
}

func TestChatRejectsBlankPrompt(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{
		Messages: "   ",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatUpstreamFailure(t *testing.T) {
	ai := &stubAI{err: llm.ErrUpstream}
	srv := newTestServer(t, ai)
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{
		Messages: "hello",
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "AI service unavailable. Please try again later.", body["error"])

	// Nothing was persisted for the failed exchange.
	ai.err = nil
	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/threads", nil)
	var threads []model.Thread
	decodeBody(t, resp, &threads)
	assert.Empty(t, threads)
}

// brokenSaveThreads fails every save while reads keep working.
type brokenSaveThreads struct {
	service.ThreadStore
}

func (b *brokenSaveThreads) Save(thread *model.Thread) error {
	return errors.New("disk full")
}

func TestChatStorageFailure(t *testing.T) {
	srv := newTestServerThreads(t, &stubAI{answer: "computed but lost"},
		func(threads service.ThreadStore) service.ThreadStore {
			return &brokenSaveThreads{ThreadStore: threads}
		})
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{
		Messages: "hello",
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Internal Server Error", body["error"])

	// The failed exchange left no thread behind.
	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/threads", nil)
	var threads []model.Thread
	decodeBody(t, resp, &threads)
	assert.Empty(t, threads)
}

func TestThreadListAndGet(t *testing.T) {
	ai := &stubAI{answer: "answer one"}
	srv := newTestServer(t, ai)
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	var created []string
	for _, q := range []string{"q1", "q2"} {
		resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{Messages: q})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body model.ChatResponse
		decodeBody(t, resp, &body)
		created = append(created, body.Thread.ThreadID)
	}

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/threads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var threads []model.Thread
	decodeBody(t, resp, &threads)
	require.Len(t, threads, 2)
	// Most recently updated first.
	assert.Equal(t, created[1], threads[0].ThreadID)
	assert.Equal(t, created[0], threads[1].ThreadID)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/threads/"+created[0], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []model.Message
	decodeBody(t, resp, &messages)
	require.Len(t, messages, 2)
	assert.Equal(t, "q1", messages[0].Content)
}

func TestThreadAccessIsOwnerScoped(t *testing.T) {
	ai := &stubAI{answer: "alice's answer"}
	srv := newTestServer(t, ai)

	alice := newClient(t)
	register(t, alice, srv.URL, "alice", "pw")

	resp := doJSON(t, alice, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{Messages: "secret question"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chat model.ChatResponse
	decodeBody(t, resp, &chat)

	bob := newClient(t)
	register(t, bob, srv.URL, "bob", "pw")

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp := doJSON(t, bob, method, srv.URL+"/api/threads/"+chat.Thread.ThreadID, nil)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Thread not found or you don't have access", body["error"])
	}

	// Alice's thread survived bob's delete attempt.
	resp = doJSON(t, alice, http.MethodGet, srv.URL+"/api/threads/"+chat.Thread.ThreadID, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestThreadDelete(t *testing.T) {
	ai := &stubAI{answer: "gone soon"}
	srv := newTestServer(t, ai)
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", model.ChatRequest{Messages: "q"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chat model.ChatResponse
	decodeBody(t, resp, &chat)

	resp = doJSON(t, client, http.MethodDelete, srv.URL+"/api/threads/"+chat.Thread.ThreadID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Thread deleted successfully", body["message"])

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/threads/"+chat.Thread.ThreadID, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv := newTestServer(t, &stubAI{answer: "hi"})
	client := newClient(t)
	register(t, client, srv.URL, "alice", "pw")

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Logged out successfully", body["msg"])

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/current_user", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
