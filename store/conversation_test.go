// ABOUTME: Tests for conversation persistence and the chat context window.
// ABOUTME: Uses t.TempDir so each test gets an isolated data directory.

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	store, err := NewConversationStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStore: %v", err)
	}
	return store
}

func TestConversationRoundTrip(t *testing.T) {
	store := newTestStore(t)

	conv, err := store.New("Currency Questions")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("empty conversation id")
	}

	if err := store.AppendTurn(conv, Turn{Question: "usd to eur?", Answer: "0.92", Mode: "ranking"}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := store.AppendTurn(conv, Turn{Question: "and gbp?", Answer: "0.79", Mode: "ranking"}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	loaded, err := store.Load(conv.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "Currency Questions" {
		t.Errorf("title = %q", loaded.Title)
	}
	if len(loaded.Turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(loaded.Turns))
	}
	if loaded.Turns[1].Question != "and gbp?" || loaded.Turns[1].Answer != "0.79" {
		t.Errorf("turn = %+v", loaded.Turns[1])
	}
	if loaded.Turns[0].CreatedAt.IsZero() {
		t.Error("turn timestamp not stamped")
	}
}

func TestConversationLatest(t *testing.T) {
	store := newTestStore(t)

	if latest, err := store.Latest(); err != nil || latest != nil {
		t.Fatalf("Latest on empty store = %v, %v", latest, err)
	}

	older, err := store.New("older")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	newer, err := store.New("newer")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Updating the older conversation makes it the latest again.
	if err := store.AppendTurn(older, Turn{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != older.ID {
		t.Errorf("latest = %s, want the updated conversation (newer was %s)", latest.ID, newer.ID)
	}
}

func TestConversationListSkipsCorruptFiles(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.New("good"); err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	convs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 1 || convs[0].Title != "good" {
		t.Errorf("convs = %+v", convs)
	}
}

func TestContextWindow(t *testing.T) {
	turns := make([]Turn, 6)
	for i := range turns {
		turns[i] = Turn{
			Question:  string(rune('a' + i)),
			CreatedAt: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}
	}
	conv := &Conversation{Turns: turns}

	// First exchange plus the two most recent.
	window := conv.ContextWindow(2)
	if len(window) != 3 {
		t.Fatalf("got %d turns, want 3", len(window))
	}
	if window[0].Question != "a" || window[1].Question != "e" || window[2].Question != "f" {
		t.Errorf("window = %+v", window)
	}

	// Short conversations come back whole.
	short := &Conversation{Turns: turns[:3]}
	if got := short.ContextWindow(5); len(got) != 3 {
		t.Errorf("short window = %d turns, want 3", len(got))
	}
}

func TestFormatContext(t *testing.T) {
	conv := &Conversation{Turns: []Turn{{Question: "hi", Answer: "hello"}}}
	got := conv.FormatContext(5)
	want := "Previous conversation:\n\nUser: hi\n\nAssistant: hello\n\n"
	if got != want {
		t.Errorf("FormatContext = %q, want %q", got, want)
	}

	empty := &Conversation{}
	if got := empty.FormatContext(5); got != "" {
		t.Errorf("empty FormatContext = %q", got)
	}
}
