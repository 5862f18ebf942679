package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/devmate-dev/devmate/internal/backend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "devmate.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKVSetGetDelete(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.Get("dev_token"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := s.Set(map[string]string{"dev_token": "t1", "dev_user": "a"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(map[string]string{"dev_token": "t2"}); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}

	v, ok, err := s.Get("dev_token")
	if err != nil || !ok || v != "t2" {
		t.Errorf("Get dev_token: got %q ok=%v err=%v, want t2", v, ok, err)
	}

	if err := s.Delete("dev_token", "dev_user", "missing"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get("dev_user"); ok {
		t.Error("dev_user should be gone after Delete")
	}
}

func TestKVPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devmate.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := s.Set(map[string]string{"dev_user": "a"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_ = s.Close()

	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.Get("dev_user"); !ok || v != "a" {
		t.Errorf("dev_user after reopen: got %q ok=%v", v, ok)
	}
}

func TestConversationCacheKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	convs := []backend.Conversation{
		{ID: "c2", Messages: []backend.Message{{Role: "user", Content: "second"}}, CreatedAt: created},
		{ID: "c1", Messages: []backend.Message{{Role: "user", Content: "first"}, {Role: "assistant", Content: "hi"}}, CreatedAt: created},
	}
	if err := s.ReplaceConversations(convs); err != nil {
		t.Fatalf("ReplaceConversations failed: %v", err)
	}

	got, err := s.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c2" || got[1].ID != "c1" {
		t.Fatalf("order not kept: %+v", got)
	}
	if len(got[1].Messages) != 2 || got[1].Messages[1].Content != "hi" {
		t.Errorf("messages not round-tripped: %+v", got[1].Messages)
	}
	if !got[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: got %v, want %v", got[0].CreatedAt, created)
	}

	if err := s.ReplaceConversations(convs[:1]); err != nil {
		t.Fatalf("second ReplaceConversations failed: %v", err)
	}
	got, _ = s.ListConversations()
	if len(got) != 1 {
		t.Errorf("replace should drop stale rows, got %d", len(got))
	}

	if err := s.ClearConversations(); err != nil {
		t.Fatalf("ClearConversations failed: %v", err)
	}
	got, _ = s.ListConversations()
	if len(got) != 0 {
		t.Errorf("cache not cleared, got %d", len(got))
	}
}
