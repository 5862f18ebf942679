package cli

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmate-dev/devmate/internal/session"
	"github.com/devmate-dev/devmate/internal/testutil"
)

func resetFlags() {
	homeFlag, apiFlag, debugFlag = "", "", false
	emailFlag, usernameFlag, passwordFlag = "", "", ""
	conversationFlag, newFlag, cachedFlag, yesFlag = "", false, false, false
	audioFileFlag, audioOutFlag = "", ""
	forceFlag = false
	limitFlag = 20
}

type harness struct {
	t    *testing.T
	fb   *testutil.FakeBackend
	home string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("DEVMATE_API_ROOT", "")
	t.Setenv("DEVMATE_VOICE_ROOT", "")
	fb := testutil.NewFakeBackend(t)
	fb.AddUser("alice@example.com", "pw")
	return &harness{t: t, fb: fb, home: t.TempDir()}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	resetFlags()
	t := h.t
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--home", h.home, "--api", h.fb.URL()}, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	out, err := h.run("", "login", "--email", "alice@example.com", "--password", "pw")
	require.NoError(h.t, err)
	require.Contains(h.t, out, "Logged in as alice")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	h.login()
	out, err := h.run("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)

	out, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run("", "whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestLoginPromptsForMissingValues(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("alice@example.com\npw\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Logged in as alice")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "login", "--email", "alice@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestSignupDoesNotLogIn(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "signup", "--username", "bob", "--email", "bob@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, session.MsgSignupSucceeded)

	_, err = h.run("", "whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	_, err = h.run("", "signup", "--username", "bob", "--email", "bob@example.com", "--password", "pw")
	require.Error(t, err)
	assert.Equal(t, "Username already exists", err.Error())
}

func TestSendContinuesConversation(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "send", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "DevMate: echo: hello")
	assert.Empty(t, h.fb.LastRun().ConversationID)

	_, err = h.run("", "send", "again")
	require.NoError(t, err)
	assert.Equal(t, "c1", h.fb.LastRun().ConversationID)
	assert.Len(t, h.fb.LastRun().Messages, 3)

	_, err = h.run("", "new")
	require.NoError(t, err)
	_, err = h.run("", "send", "fresh")
	require.NoError(t, err)
	assert.Empty(t, h.fb.LastRun().ConversationID)

	_, err = h.run("", "send", "--conversation", "c1", "back")
	require.NoError(t, err)
	assert.Equal(t, "c1", h.fb.LastRun().ConversationID)
}

func TestSendReadsStdin(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("from stdin\n", "send")
	require.NoError(t, err)
	assert.Contains(t, out, "echo: from stdin")
}

func TestSendFailurePrintsErrorReply(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusInternalServerError, map[string]any{"detail": "agent crashed"})
	}

	out, err := h.run("", "send", "hi")
	require.Error(t, err)
	assert.Contains(t, out, "DevMate: Error: agent crashed")
}

func TestSendUnknownConversation(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, err := h.run("", "send", "--conversation", "nope", "hi")
	assert.Error(t, err)
	assert.Empty(t, h.fb.RunCalls)
}

func TestHistoryAndShow(t *testing.T) {
	h := newHarness(t)
	h.login()
	id := h.fb.AddConversation(
		testutil.FakeMessage{Role: "user", Content: "what is go"},
		testutil.FakeMessage{Role: "assistant", Content: "a **language**"},
	)

	out, err := h.run("", "history")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "what is go")

	out, err = h.run("", "history", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "what is go")

	out, err = h.run("", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "You: what is go")
	assert.Contains(t, out, "DevMate: a language")

	_, err = h.run("", "send", "more")
	require.NoError(t, err)
	assert.Equal(t, id, h.fb.LastRun().ConversationID)
}

func TestLoginAsAnotherUserDropsCachedHistory(t *testing.T) {
	h := newHarness(t)
	h.fb.AddUser("bob", "pw2")
	h.login()

	_, err := h.run("", "send", "alice secret plan")
	require.NoError(t, err)
	out, err := h.run("", "history", "--cached")
	require.NoError(t, err)
	require.Contains(t, out, "alice secret plan")

	out, err = h.run("", "login", "--username", "bob", "--password", "pw2")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as bob")

	out, err = h.run("", "history", "--cached")
	require.NoError(t, err)
	assert.NotContains(t, out, "alice secret plan")
	assert.Contains(t, out, "No conversations yet.")
}

func TestHistoryEmpty(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet.")
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	h.login()
	id := h.fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "bye"})

	out, err := h.run("n\n", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.Len(t, h.fb.Conversations(), 1)

	out, err = h.run("y\n", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)
	assert.Empty(t, h.fb.Conversations())

	_, err = h.run("", "delete", "--yes", id)
	require.Error(t, err)
	assert.Equal(t, "Conversation not found", err.Error())
}

func TestDeleteActiveStartsFresh(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, err := h.run("", "send", "hello")
	require.NoError(t, err)
	_, err = h.run("", "delete", "-y", "c1")
	require.NoError(t, err)

	_, err = h.run("", "send", "next")
	require.NoError(t, err)
	assert.Empty(t, h.fb.LastRun().ConversationID)
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	h.login()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes"), 0600))

	out, err := h.run("", "upload", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded notes.txt")
}

func TestConfigInitAndShow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "config.yaml")

	_, err = h.run("", "config", "init")
	assert.Error(t, err)

	_, err = h.run("", "config", "init", "--force")
	require.NoError(t, err)

	out, err = h.run("", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "root: "+h.fb.URL())
	assert.Contains(t, out, "chunk_size: 16384")
}

func TestEvents(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "events")
	require.NoError(t, err)
	assert.Contains(t, out, "No events recorded.")

	h.login()
	_, err = h.run("", "send", "hello")
	require.NoError(t, err)

	out, err = h.run("", "events")
	require.NoError(t, err)
	assert.Contains(t, out, "login")
	assert.Contains(t, out, "message_sent")
	assert.Contains(t, out, "conversation=c1")

	out, err = h.run("", "events", "-n", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "history_refreshed")
}
