// Package testutil provides test helper utilities for devmate tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeMessage mirrors the wire message shape without importing backend.
type FakeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FakeConversation is a conversation held by FakeBackend. It is encoded with
// the Mongo-style "_id" key the real server uses.
type FakeConversation struct {
	ID        string        `json:"_id"`
	Messages  []FakeMessage `json:"messages"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

// RunCall records one /run request body.
type RunCall struct {
	Messages       []FakeMessage `json:"messages"`
	ConversationID string        `json:"conversation_id"`
}

// FakeBackend is an in-memory DevMate backend served over httptest.
// Override hooks replace the default handler for one endpoint.
type FakeBackend struct {
	Server *httptest.Server
	Token  string

	mu            sync.Mutex
	users         map[string]string // email or username -> password
	conversations []FakeConversation
	nextID        int
	RunCalls      []RunCall
	Uploads       map[string][]byte
	Requests      []string // "METHOD /path"

	// Hooks. When set they fully handle the request.
	LoginHook  http.HandlerFunc
	SignupHook http.HandlerFunc
	RunHook    http.HandlerFunc
	DeleteHook http.HandlerFunc
	ListHook   http.HandlerFunc
	UploadHook http.HandlerFunc
}

// NewFakeBackend starts a FakeBackend; it is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		Token:   "t1",
		users:   map[string]string{},
		Uploads: map[string][]byte{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", fb.login)
	mux.HandleFunc("/signup", fb.signup)
	mux.HandleFunc("/run", fb.run)
	mux.HandleFunc("/conversations", fb.list)
	mux.HandleFunc("/conversations/", fb.delete)
	mux.HandleFunc("/upload", fb.upload)

	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.Requests = append(fb.Requests, r.Method+" "+r.URL.Path)
		fb.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fb.Server.Close)

	return fb
}

// URL returns the base URL of the fake server.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// AddUser registers a login.
func (fb *FakeBackend) AddUser(identifier, password string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.users[identifier] = password
}

// AddConversation seeds a conversation and returns its id.
func (fb *FakeBackend) AddConversation(messages ...FakeMessage) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.addConversationLocked(messages)
}

// Conversations returns a copy of the stored conversations.
func (fb *FakeBackend) Conversations() []FakeConversation {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]FakeConversation, len(fb.conversations))
	copy(out, fb.conversations)
	return out
}

// LastRun returns the most recent /run body.
func (fb *FakeBackend) LastRun() RunCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.RunCalls) == 0 {
		return RunCall{}
	}
	return fb.RunCalls[len(fb.RunCalls)-1]
}

// CountRequests returns how many requests matched "METHOD /path".
func (fb *FakeBackend) CountRequests(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, r := range fb.Requests {
		if r == route {
			n++
		}
	}
	return n
}

func (fb *FakeBackend) addConversationLocked(messages []FakeMessage) string {
	fb.nextID++
	id := fmt.Sprintf("c%d", fb.nextID)
	fb.conversations = append(fb.conversations, FakeConversation{
		ID:        id,
		Messages:  messages,
		CreatedAt: time.Date(2026, 1, fb.nextID, 10, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	return id
}

func (fb *FakeBackend) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+fb.Token {
		WriteJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid token"})
		return false
	}
	return true
}

func (fb *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	if fb.LoginHook != nil {
		fb.LoginHook(w, r)
		return
	}
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}
	id := body.Email
	if id == "" {
		id = body.Username
	}

	fb.mu.Lock()
	password, ok := fb.users[id]
	fb.mu.Unlock()
	if !ok || password != body.Password {
		WriteJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
		return
	}

	name := id
	if at := strings.Index(id, "@"); at > 0 {
		name = id[:at]
	}
	WriteJSON(w, http.StatusOK, map[string]any{"access_token": fb.Token, "token_type": "bearer", "username": name})
}

func (fb *FakeBackend) signup(w http.ResponseWriter, r *http.Request) {
	if fb.SignupHook != nil {
		fb.SignupHook(w, r)
		return
	}
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, exists := fb.users[body.Username]; exists {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"detail": "Username already exists"})
		return
	}
	fb.users[body.Username] = body.Password
	if body.Email != "" {
		fb.users[body.Email] = body.Password
	}
	WriteJSON(w, http.StatusOK, map[string]any{"msg": "User created successfully"})
}

func (fb *FakeBackend) run(w http.ResponseWriter, r *http.Request) {
	if fb.RunHook != nil {
		fb.RunHook(w, r)
		return
	}
	if !fb.authorized(w, r) {
		return
	}
	var call RunCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.RunCalls = append(fb.RunCalls, call)

	last := ""
	if n := len(call.Messages); n > 0 {
		last = call.Messages[n-1].Content
	}
	messages := append(append([]FakeMessage{}, call.Messages...), FakeMessage{Role: "assistant", Content: "echo: " + last})

	id := call.ConversationID
	if id == "" {
		id = fb.addConversationLocked(messages)
	} else {
		for i := range fb.conversations {
			if fb.conversations[i].ID == id {
				fb.conversations[i].Messages = messages
			}
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": messages, "conversation_id": id})
}

func (fb *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	if fb.ListHook != nil {
		fb.ListHook(w, r)
		return
	}
	if !fb.authorized(w, r) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversations": fb.Conversations()})
}

func (fb *FakeBackend) delete(w http.ResponseWriter, r *http.Request) {
	if fb.DeleteHook != nil {
		fb.DeleteHook(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"detail": "Method Not Allowed"})
		return
	}
	if !fb.authorized(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/conversations/")

	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i, c := range fb.conversations {
		if c.ID == id {
			fb.conversations = append(fb.conversations[:i], fb.conversations[i+1:]...)
			WriteJSON(w, http.StatusOK, map[string]any{"message": "Conversation deleted"})
			return
		}
	}
	WriteJSON(w, http.StatusNotFound, map[string]any{"detail": "Conversation not found"})
}

func (fb *FakeBackend) upload(w http.ResponseWriter, r *http.Request) {
	if fb.UploadHook != nil {
		fb.UploadHook(w, r)
		return
	}
	if !fb.authorized(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"detail": "No file provided"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}

	fb.mu.Lock()
	fb.Uploads[header.Filename] = data
	fb.mu.Unlock()
	WriteJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Uploaded %s", header.Filename)})
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
