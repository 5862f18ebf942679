package chat

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/storage"
	"github.com/devmate-dev/devmate/internal/testutil"
)

type staticToken string

func (t staticToken) Token() (string, error) { return string(t), nil }

var (
	yes = ConfirmFunc(func(string) bool { return true })
	no  = ConfirmFunc(func(string) bool { return false })
)

func setupSync(t *testing.T) (*Sync, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	return New(backend.New(fb.URL(), backend.Options{}), staticToken("t1"), Options{}), fb
}

func TestSendMessageOnDraftReplacesListAndActivates(t *testing.T) {
	s, fb := setupSync(t)
	fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]string{
				{"role": "user", "content": "hi"},
				{"role": "assistant", "content": "hello"},
			},
			"conversation_id": "c1",
		})
	}

	msgs, err := s.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []backend.Message{
		{Role: backend.RoleUser, Content: "hi"},
		{Role: backend.RoleAssistant, Content: "hello"},
	}, msgs)

	id, ok := ConversationID(s.State())
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
	assert.Equal(t, 1, fb.CountRequests("GET /conversations"), "send must refresh history")
}

func TestSendMessageUsesServerListNotConcatenation(t *testing.T) {
	s, fb := setupSync(t)
	fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		// The server rewrites history entirely.
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"messages":        []map[string]string{{"role": "assistant", "content": "summary only"}},
			"conversation_id": "c7",
		})
	}

	msgs, err := s.SendMessage(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []backend.Message{{Role: backend.RoleAssistant, Content: "summary only"}}, msgs)
	assert.Equal(t, msgs, s.Messages())
}

func TestConversationIDAttachedToSubsequentSends(t *testing.T) {
	s, fb := setupSync(t)

	_, err := s.SendMessage(context.Background(), "first")
	require.NoError(t, err)
	assert.Empty(t, fb.RunCalls[0].ConversationID)

	_, err = s.SendMessage(context.Background(), "second")
	require.NoError(t, err)
	_, err = s.SendMessage(context.Background(), "third")
	require.NoError(t, err)

	require.Len(t, fb.RunCalls, 3)
	assert.Equal(t, "c1", fb.RunCalls[1].ConversationID)
	assert.Equal(t, "c1", fb.RunCalls[2].ConversationID)
	// Full history is sent every time.
	assert.Len(t, fb.RunCalls[2].Messages, 5)
}

func TestActiveKeepsItsIDWhenServerReturnsAnother(t *testing.T) {
	s, fb := setupSync(t)
	_, err := s.SendMessage(context.Background(), "first")
	require.NoError(t, err)

	fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"messages": []any{}, "conversation_id": "other"})
	}
	_, err = s.SendMessage(context.Background(), "second")
	require.NoError(t, err)

	id, _ := ConversationID(s.State())
	assert.Equal(t, "c1", id)
}

func TestSendMessageBackendErrorAppendsSyntheticReply(t *testing.T) {
	s, fb := setupSync(t)
	fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusInternalServerError, map[string]any{"detail": "graph exploded"})
	}

	msgs, err := s.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, []backend.Message{
		{Role: backend.RoleUser, Content: "hi"},
		{Role: backend.RoleAssistant, Content: "Error: graph exploded"},
	}, msgs)
	assert.IsType(t, Draft{}, s.State())
	assert.Equal(t, 0, fb.CountRequests("GET /conversations"))
}

func TestSendMessageTransportErrorAppendsConnectionReply(t *testing.T) {
	s, fb := setupSync(t)
	fb.Server.Close()

	msgs, err := s.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, backend.ErrTransport)
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgConnectionError, msgs[1].Content)
	assert.False(t, s.Busy())
}

func TestSendMessageRejectsBlank(t *testing.T) {
	s, fb := setupSync(t)

	_, err := s.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, fb.RunCalls)
}

func TestSendMessageWhileBusyIsRejected(t *testing.T) {
	s, fb := setupSync(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"messages": []any{}, "conversation_id": "c1"})
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "first")
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first send never reached the server")
	}
	assert.True(t, s.Busy())

	msgs, err := s.SendMessage(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, []backend.Message{{Role: backend.RoleUser, Content: "first"}}, msgs, "rejected send must not touch the list")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
}

func TestDeleteWhileSendingIsRejected(t *testing.T) {
	s, fb := setupSync(t)
	id := fb.AddConversation(
		testutil.FakeMessage{Role: "user", Content: "hi"},
		testutil.FakeMessage{Role: "assistant", Content: "hello"},
	)
	_, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)
	_, err = s.LoadConversation(id)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	fb.RunHook = func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]string{
				{"role": "user", "content": "hi"},
				{"role": "assistant", "content": "hello"},
				{"role": "user", "content": "more"},
				{"role": "assistant", "content": "sure"},
			},
			"conversation_id": id,
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "more")
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("send never reached the server")
	}

	asked := false
	err = s.DeleteConversation(context.Background(), id, ConfirmFunc(func(string) bool {
		asked = true
		return true
	}))
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, asked, "a rejected delete must not prompt")
	assert.Len(t, fb.Conversations(), 1)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Active{ID: id}, s.State())
	assert.Len(t, s.Messages(), 4)

	require.NoError(t, s.DeleteConversation(context.Background(), id, yes))
	assert.Equal(t, Draft{}, s.State())
	assert.Empty(t, s.Messages())
	assert.False(t, s.Busy())
}

func TestSendWhileDeletingIsRejected(t *testing.T) {
	s, fb := setupSync(t)
	id := fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "hi"})
	_, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)
	_, err = s.LoadConversation(id)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	fb.DeleteHook = func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"message": "deleted"})
	}

	done := make(chan error, 1)
	go func() { done <- s.DeleteConversation(context.Background(), id, yes) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("delete never reached the server")
	}

	_, err = s.SendMessage(context.Background(), "late")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, fb.RunCalls)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Draft{}, s.State())
}

func TestStaleUntilRefresh(t *testing.T) {
	s, fb := setupSync(t)
	fb.ListHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusInternalServerError, map[string]any{"detail": "db down"})
	}

	_, err := s.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, Active{ID: "c1", Stale: true}, s.State())

	fb.ListHook = nil
	_, err = s.RefreshHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Active{ID: "c1"}, s.State())
}

func TestRefreshHistoryReplacesWholesale(t *testing.T) {
	s, fb := setupSync(t)
	fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "one"})
	fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "two"}, testutil.FakeMessage{Role: "assistant", Content: "reply"})

	sums, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "one", sums[0].UserPreview)
	assert.Equal(t, PreviewNoAssistant, sums[0].AssistantPreview)
	assert.Equal(t, 2, sums[1].TotalMessages)

	fb.ListHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"conversations": []any{}})
	}
	sums, err = s.RefreshHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sums)
	assert.Empty(t, s.Conversations())
}

func TestRefreshHistoryFailureKeepsList(t *testing.T) {
	s, fb := setupSync(t)
	fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "one"})
	_, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)

	fb.ListHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusInternalServerError, map[string]any{"detail": "nope"})
	}
	_, err = s.RefreshHistory(context.Background())
	require.Error(t, err)
	assert.Len(t, s.Conversations(), 1)
}

func TestLoadConversationAndStartNew(t *testing.T) {
	s, fb := setupSync(t)
	id := fb.AddConversation(
		testutil.FakeMessage{Role: "user", Content: "q"},
		testutil.FakeMessage{Role: "assistant", Content: "a"},
	)

	_, err := s.LoadConversation(id)
	assert.ErrorIs(t, err, ErrUnknownConversation)

	_, err = s.RefreshHistory(context.Background())
	require.NoError(t, err)

	msgs, err := s.LoadConversation(id)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, Active{ID: id}, s.State())

	_, err = s.SendMessage(context.Background(), "follow up")
	require.NoError(t, err)
	assert.Equal(t, id, fb.LastRun().ConversationID)
	assert.Len(t, fb.LastRun().Messages, 3)

	s.StartNew()
	assert.Empty(t, s.Messages())
	assert.Equal(t, Draft{}, s.State())
}

func TestDeleteActiveConversationResetsToDraft(t *testing.T) {
	s, fb := setupSync(t)
	id := fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "q"})
	_, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)
	_, err = s.LoadConversation(id)
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(context.Background(), id, yes))
	assert.Equal(t, Draft{}, s.State())
	assert.Empty(t, s.Messages())
	assert.Empty(t, s.Conversations())
}

func TestDeleteOtherConversationKeepsView(t *testing.T) {
	s, fb := setupSync(t)
	keep := fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "keep"})
	drop := fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "drop"})
	_, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)
	before, err := s.LoadConversation(keep)
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(context.Background(), drop, yes))
	assert.Equal(t, Active{ID: keep}, s.State())
	assert.Equal(t, before, s.Messages())
	assert.Len(t, s.Conversations(), 1)
}

func TestDeleteDeclinedDoesNothing(t *testing.T) {
	s, fb := setupSync(t)
	id := fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "q"})

	assert.ErrorIs(t, s.DeleteConversation(context.Background(), id, no), ErrDeclined)
	assert.ErrorIs(t, s.DeleteConversation(context.Background(), id, nil), ErrDeclined)
	assert.Equal(t, 0, fb.CountRequests("DELETE /conversations/"+id))
	assert.Len(t, fb.Conversations(), 1)
}

func TestDeleteFailureSurfacesServerText(t *testing.T) {
	s, fb := setupSync(t)
	id := fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "q"})
	_, err := s.RefreshHistory(context.Background())
	require.NoError(t, err)
	_, err = s.LoadConversation(id)
	require.NoError(t, err)
	fb.DeleteHook = func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusForbidden, map[string]any{"detail": "Not your conversation"})
	}

	err = s.DeleteConversation(context.Background(), id, yes)
	require.Error(t, err)
	assert.Equal(t, "Not your conversation", err.Error())
	assert.Equal(t, Active{ID: id}, s.State())
	assert.Len(t, s.Messages(), 1)
}

func TestRefreshMirrorsIntoCache(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.AddConversation(testutil.FakeMessage{Role: "user", Content: "cached"})
	db, err := storage.NewStore(filepath.Join(t.TempDir(), "devmate.db"))
	require.NoError(t, err)
	defer db.Close()

	s := New(backend.New(fb.URL(), backend.Options{}), staticToken("t1"), Options{Cache: db})
	_, err = s.RefreshHistory(context.Background())
	require.NoError(t, err)

	offline := New(nil, staticToken("t1"), Options{Cache: db})
	sums, err := offline.LoadCachedHistory()
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "cached", sums[0].UserPreview)

	msgs, err := offline.LoadConversation(sums[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	require.NoError(t, offline.Forget())
	assert.Empty(t, offline.Messages())
	assert.Empty(t, offline.Conversations())
	assert.Equal(t, Draft{}, offline.State())
	sums, err = offline.LoadCachedHistory()
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestUpload(t *testing.T) {
	s, fb := setupSync(t)
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0600))

	msg, err := s.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Uploaded report.pdf", msg)
	assert.Equal(t, []byte("%PDF"), fb.Uploads["report.pdf"])

	_, err = s.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

type noToken struct{}

func (noToken) Token() (string, error) { return "", errors.New("not logged in") }

func TestOperationsNeedToken(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	s := New(backend.New(fb.URL(), backend.Options{}), noToken{}, Options{})

	msgs, err := s.SendMessage(context.Background(), "hi")
	assert.Error(t, err)
	assert.Empty(t, msgs)
	_, err = s.RefreshHistory(context.Background())
	assert.Error(t, err)
	assert.Empty(t, fb.Requests)
}
