// ABOUTME: HTTP tests for the council API: SSE streaming, conversation reads, history.
// ABOUTME: The engine runs against an in-process fake gateway adapter.

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389-research/council/council"
	"github.com/2389-research/council/llm"
	"github.com/2389-research/council/store"
	"github.com/2389-research/council/tools"
)

// fakeAdapter answers every completion with a ballot or an answer, and the
// single streaming (chairman) call with a reflection plus synthesis.
type fakeAdapter struct{}

func (fakeAdapter) Name() string { return "fake" }

func (fakeAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	content := "answer from " + req.Model
	if strings.Contains(prompt, "FINAL RANKING:") {
		content = "FINAL RANKING:\n1. Response A\n2. Response B"
	}
	return &llm.Response{
		Model:        req.Model,
		Message:      llm.AssistantMessage(content),
		FinishReason: llm.FinishReason{Reason: llm.FinishStop},
	}, nil
}

func (fakeAdapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	content := "Broad agreement.\n\n## Synthesis\nThe combined answer."
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.StreamEvent{Type: llm.StreamTextDelta, Delta: content}
	ch <- llm.StreamEvent{
		Type:         llm.StreamFinish,
		Content:      content,
		FinishReason: &llm.FinishReason{Reason: llm.FinishStop},
	}
	close(ch)
	return ch, nil
}

func (fakeAdapter) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *store.ConversationStore, *store.RunHistory) {
	t.Helper()

	client := llm.NewClient(fakeAdapter{}, llm.WithRetryPolicy(llm.RetryPolicy{MaxRetries: 0}))
	registry := tools.NewRegistry()
	if err := registry.Register(tools.SearchTool(tools.NewSearcher(""))); err != nil {
		t.Fatalf("registering search tool: %v", err)
	}
	engine, err := council.NewEngine(client, registry, []string{"m/a", "m/b"}, "chair/model")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	conversations, err := store.NewConversationStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStore: %v", err)
	}
	history, err := store.OpenRunHistory(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenRunHistory: %v", err)
	}
	t.Cleanup(func() { _ = history.Close() })

	server, err := NewServer(ServerConfig{
		Engine:        engine,
		Conversations: conversations,
		History:       history,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server, conversations, history
}

func TestStreamEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	body := strings.NewReader(`{"question": "what is the best language?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/council/stream", body)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	var types []string
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		types = append(types, ev.Type)
	}
	if len(types) == 0 {
		t.Fatal("no events streamed")
	}
	if types[len(types)-1] != "synthesis" {
		t.Errorf("last event type = %q, want synthesis", types[len(types)-1])
	}
	sawRanking := false
	for _, typ := range types {
		if typ == "ranking_complete" {
			sawRanking = true
		}
	}
	if !sawRanking {
		t.Error("no ranking_complete event in stream")
	}
}

func TestStreamEndpointValidation(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty question", body: `{"question": ""}`},
		{name: "malformed json", body: `{nope`},
		{name: "unknown mode", body: `{"question": "q", "mode": "tribunal"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/council/stream", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestModelsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var got struct {
		CouncilModels []string `json:"council_models"`
		ChairmanModel string   `json:"chairman_model"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.CouncilModels) != 2 || got.ChairmanModel != "chair/model" {
		t.Errorf("models = %+v", got)
	}
}

func TestConversationEndpoints(t *testing.T) {
	server, conversations, _ := newTestServer(t)

	conv, err := conversations.New("Test Chat")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := conversations.AppendTurn(conv, store.Turn{
		Question: "is go **fast**?",
		Answer:   "Yes, it is **fast**.",
		Mode:     "ranking",
	}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		var got []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Turns int    `json:"turns"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(got) != 1 || got[0].ID != conv.ID || got[0].Turns != 1 {
			t.Errorf("list = %+v", got)
		}
	})

	t.Run("get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		var got store.Conversation
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if got.Title != "Test Chat" || len(got.Turns) != 1 {
			t.Errorf("conversation = %+v", got)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversations/nope", nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("view renders markdown", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID+"/view", nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("content type = %q", ct)
		}
		page := rec.Body.String()
		if !strings.Contains(page, "<strong>fast</strong>") {
			t.Error("answer markdown not rendered to HTML")
		}
		if !strings.Contains(page, "Test Chat") {
			t.Error("title missing from page")
		}
	})
}

func TestHistoryEndpoint(t *testing.T) {
	server, _, history := newTestServer(t)

	if _, err := history.Record(store.RunRecord{
		Mode:       "ranking",
		Question:   "q",
		Synthesis:  "s",
		ModelCount: 2,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var got []store.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].Question != "q" {
		t.Errorf("history = %+v", got)
	}
}

func TestRenderMarkdownFallback(t *testing.T) {
	got := string(RenderMarkdown("plain `code` text"))
	if !strings.Contains(got, "<code>code</code>") {
		t.Errorf("rendered = %q", got)
	}
}

func TestNewServerValidation(t *testing.T) {
	conversations, err := store.NewConversationStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStore: %v", err)
	}
	if _, err := NewServer(ServerConfig{Conversations: conversations}); err == nil {
		t.Error("expected error for missing engine")
	}
	if _, err := NewServer(ServerConfig{Engine: &council.Engine{}}); err == nil {
		t.Error("expected error for missing conversation store")
	}
}
