// ABOUTME: Shared test doubles for the council package: a scripted gateway adapter and event collector.
// ABOUTME: Individual test files cover parsers, executors, orchestration, and the ranking pipeline.

package council

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/2389-research/council/llm"
	"github.com/2389-research/council/tools"
)

// stubAdapter scripts gateway behavior per test.
type stubAdapter struct {
	completeFn func(ctx context.Context, req llm.Request) (*llm.Response, error)
	streamFn   func(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error)
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.completeFn == nil {
		return nil, fmt.Errorf("complete not scripted")
	}
	return s.completeFn(ctx, req)
}

func (s *stubAdapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	if s.streamFn == nil {
		return nil, fmt.Errorf("stream not scripted")
	}
	return s.streamFn(ctx, req)
}

func (s *stubAdapter) Close() error { return nil }

func textResponse(model, content string) *llm.Response {
	return &llm.Response{
		Model:        model,
		Message:      llm.AssistantMessage(content),
		FinishReason: llm.FinishReason{Reason: llm.FinishStop},
	}
}

// textStream returns a stream of one-rune-ish deltas followed by a finish
// event carrying the full content.
func textStream(deltas ...string) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, len(deltas)+1)
	var full strings.Builder
	for _, d := range deltas {
		full.WriteString(d)
		ch <- llm.StreamEvent{Type: llm.StreamTextDelta, Delta: d}
	}
	ch <- llm.StreamEvent{
		Type:         llm.StreamFinish,
		Content:      full.String(),
		FinishReason: &llm.FinishReason{Reason: llm.FinishStop},
	}
	close(ch)
	return ch
}

func errorStream(err error) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, 1)
	ch <- llm.StreamEvent{Type: llm.StreamErrorEvt, Err: err}
	close(ch)
	return ch
}

// eventCollector is a concurrency-safe EmitFunc backed by a slice.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) emit(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *eventCollector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *eventCollector) byType(t EventType) []Event {
	var out []Event
	for _, ev := range c.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func newTestRegistry(t *testing.T, searchResult string) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	tool := tools.SearchTool(tools.NewSearcher(""))
	if searchResult != "" {
		tool = &tools.RegisteredTool{
			Definition: tools.SearchToolDefinition(),
			Handler: func(ctx context.Context, args json.RawMessage) string {
				return searchResult
			},
		}
	}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register search tool: %v", err)
	}
	return registry
}

func newTestEngine(t *testing.T, adapter llm.ProviderAdapter, participants []string, opts ...EngineOption) *Engine {
	t.Helper()
	client := llm.NewClient(adapter, llm.WithRetryPolicy(llm.RetryPolicy{MaxRetries: 0}))
	engine, err := NewEngine(client, newTestRegistry(t, "search results here"), participants, "chair/model", opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}
