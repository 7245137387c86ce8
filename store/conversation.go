// ABOUTME: Conversation persistence: one JSON file per conversation under the data dir.
// ABOUTME: Supplies the context window used when a chat session builds its next query.

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Turn is one exchange in a conversation.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a titled sequence of turns.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []Turn    `json:"turns"`
}

// ConversationStore reads and writes conversations as JSON files.
type ConversationStore struct {
	dir string
}

// NewConversationStore creates the data directory if needed.
func NewConversationStore(dir string) (*ConversationStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating conversation dir: %w", err)
	}
	return &ConversationStore{dir: dir}, nil
}

// New creates and persists an empty conversation with a fresh UUID.
func (s *ConversationStore) New(title string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Save writes the conversation atomically (temp file then rename).
func (s *ConversationStore) Save(conv *Conversation) error {
	conv.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding conversation: %w", err)
	}

	path := s.path(conv.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing conversation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming conversation: %w", err)
	}
	return nil
}

// Load reads a conversation by id.
func (s *ConversationStore) Load(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("reading conversation %s: %w", id, err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return &conv, nil
}

// AppendTurn adds an exchange and persists the conversation.
func (s *ConversationStore) AppendTurn(conv *Conversation, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	conv.Turns = append(conv.Turns, turn)
	return s.Save(conv)
}

// List returns all conversations, most recently updated first.
func (s *ConversationStore) List() ([]*Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	var convs []*Conversation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// A corrupt file should not hide the rest of the history.
			continue
		}
		convs = append(convs, conv)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// Latest returns the most recently updated conversation, or nil when the
// store is empty.
func (s *ConversationStore) Latest() (*Conversation, error) {
	convs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return convs[0], nil
}

func (s *ConversationStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// ContextWindow returns the turns a chat session should carry into its next
// query: the first exchange plus the most recent maxRecent exchanges. The
// first turn anchors what the conversation is about even when the middle has
// scrolled out of the window.
func (c *Conversation) ContextWindow(maxRecent int) []Turn {
	if len(c.Turns) <= maxRecent+1 {
		return c.Turns
	}
	window := make([]Turn, 0, maxRecent+1)
	window = append(window, c.Turns[0])
	window = append(window, c.Turns[len(c.Turns)-maxRecent:]...)
	return window
}

// FormatContext renders the context window as a prompt preamble.
func (c *Conversation) FormatContext(maxRecent int) string {
	window := c.ContextWindow(maxRecent)
	if len(window) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n\n")
	for _, turn := range window {
		fmt.Fprintf(&sb, "User: %s\n\nAssistant: %s\n\n", turn.Question, turn.Answer)
	}
	return sb.String()
}
