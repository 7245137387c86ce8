// ABOUTME: Tests for the batch-parallel and sequential-streaming round executors.
// ABOUTME: Covers completion ordering, timeouts, the had_error guard, and revised-answer parsing.

package council

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/council/llm"
)

func TestParallelExecutorBasicRound(t *testing.T) {
	adapter := &stubAdapter{
		completeFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			return textResponse(req.Model, "answer from "+req.Model), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b", "m/c"})
	col := &eventCollector{}

	responses, err := engine.ParallelExecutor().ExecuteRound(context.Background(), RoundInitial, "q", RoundContext{}, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}

	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	seen := map[string]bool{}
	for _, resp := range responses {
		if seen[resp.Model] {
			t.Errorf("duplicate response for %s", resp.Model)
		}
		seen[resp.Model] = true
		if resp.Response != "answer from "+resp.Model {
			t.Errorf("response for %s = %q", resp.Model, resp.Response)
		}
	}

	if starts := col.byType(EventModelStart); len(starts) != 3 {
		t.Errorf("got %d model_start events, want 3", len(starts))
	}
	if completes := col.byType(EventModelComplete); len(completes) != 3 {
		t.Errorf("got %d model_complete events, want 3", len(completes))
	}

	// All model_start events precede any model_complete.
	events := col.all()
	firstComplete := len(events)
	for i, ev := range events {
		if ev.Type == EventModelComplete {
			firstComplete = i
			break
		}
	}
	for i, ev := range events {
		if ev.Type == EventModelStart && i > firstComplete {
			t.Error("model_start emitted after a model_complete")
		}
	}
}

func TestParallelExecutorTimeout(t *testing.T) {
	adapter := &stubAdapter{
		completeFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			if req.Model == "m/b" {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return textResponse(req.Model, "ok"), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b", "m/c"}, WithModelTimeout(100*time.Millisecond))
	col := &eventCollector{}

	responses, err := engine.ParallelExecutor().ExecuteRound(context.Background(), RoundInitial, "q", RoundContext{}, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}

	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	for _, resp := range responses {
		if resp.Model == "m/b" {
			t.Error("timed-out participant present in responses")
		}
	}

	errors := col.byType(EventModelError)
	if len(errors) != 1 {
		t.Fatalf("got %d model_error events, want 1", len(errors))
	}
	if errors[0].Model != "m/b" {
		t.Errorf("model_error for %s, want m/b", errors[0].Model)
	}
	if errors[0].Reason != "timeout after 0.1s" {
		t.Errorf("reason = %q, want %q", errors[0].Reason, "timeout after 0.1s")
	}

	// Exactly one terminal event per participant: no complete for m/b.
	for _, ev := range col.byType(EventModelComplete) {
		if ev.Model == "m/b" {
			t.Error("model_complete emitted for timed-out participant")
		}
	}
}

func TestParallelExecutorIsolatesFailures(t *testing.T) {
	adapter := &stubAdapter{
		completeFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			if req.Model == "m/a" {
				return nil, fmt.Errorf("connection refused")
			}
			return textResponse(req.Model, "fine"), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b"})
	col := &eventCollector{}

	responses, err := engine.ParallelExecutor().ExecuteRound(context.Background(), RoundCritique, "q", RoundContext{}, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}
	if len(responses) != 1 || responses[0].Model != "m/b" {
		t.Fatalf("responses = %+v, want only m/b", responses)
	}
	errs := col.byType(EventModelError)
	if len(errs) != 1 || !strings.Contains(errs[0].Reason, "connection refused") {
		t.Errorf("model_error = %+v", errs)
	}
}

func TestStreamingExecutorOrdering(t *testing.T) {
	adapter := &stubAdapter{
		streamFn: func(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
			return textStream("hello from ", req.Model), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b"})
	col := &eventCollector{}

	responses, err := engine.StreamingExecutor().ExecuteRound(context.Background(), RoundInitial, "q", RoundContext{}, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if responses[0].Model != "m/a" || responses[1].Model != "m/b" {
		t.Errorf("responses out of submission order: %+v", responses)
	}

	// No m/b event may precede m/a's model_complete.
	events := col.all()
	aDone := -1
	for i, ev := range events {
		if ev.Type == EventModelComplete && ev.Model == "m/a" {
			aDone = i
			break
		}
	}
	if aDone < 0 {
		t.Fatal("m/a never completed")
	}
	for i, ev := range events[:aDone] {
		if ev.Model == "m/b" {
			t.Errorf("event %d for m/b (%s) before m/a completed", i, ev.Type)
		}
	}

	tokens := col.byType(EventToken)
	if len(tokens) != 4 {
		t.Errorf("got %d token events, want 4", len(tokens))
	}
}

func TestStreamingExecutorHadErrorGuard(t *testing.T) {
	adapter := &stubAdapter{
		streamFn: func(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
			if req.Model == "m/a" {
				return errorStream(fmt.Errorf("stream reset")), nil
			}
			return textStream("all good"), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b"})
	col := &eventCollector{}

	responses, err := engine.StreamingExecutor().ExecuteRound(context.Background(), RoundInitial, "q", RoundContext{}, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}
	if len(responses) != 1 || responses[0].Model != "m/b" {
		t.Fatalf("responses = %+v, want only m/b", responses)
	}

	for _, ev := range col.byType(EventModelComplete) {
		if ev.Model == "m/a" {
			t.Error("model_complete emitted after a stream error for the same participant")
		}
	}
	errs := col.byType(EventModelError)
	if len(errs) != 1 || errs[0].Model != "m/a" {
		t.Fatalf("model_error events = %+v", errs)
	}
}

func TestStreamingExecutorSkipsEmptyContent(t *testing.T) {
	adapter := &stubAdapter{
		streamFn: func(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
			if req.Model == "m/a" {
				return textStream(), nil
			}
			return textStream("substantive"), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b"})
	col := &eventCollector{}

	responses, err := engine.StreamingExecutor().ExecuteRound(context.Background(), RoundCritique, "q", RoundContext{}, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}
	if len(responses) != 1 || responses[0].Model != "m/b" {
		t.Fatalf("responses = %+v, want only m/b", responses)
	}
	for _, ev := range col.byType(EventModelComplete) {
		if ev.Model == "m/a" {
			t.Error("model_complete emitted for empty response")
		}
	}
	if errs := col.byType(EventModelError); len(errs) != 0 {
		t.Errorf("unexpected model_error events: %+v", errs)
	}
}

func TestDefenseRoundParsesRevisedAnswer(t *testing.T) {
	adapter := &stubAdapter{
		completeFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			content := fmt.Sprintf("## Addressing Critiques\nconceded\n\n## Revised Response\nrevised by %s", req.Model)
			return textResponse(req.Model, content), nil
		},
	}
	engine := newTestEngine(t, adapter, []string{"m/a", "m/b"})
	col := &eventCollector{}

	rctx := RoundContext{
		InitialResponses:  pairResponses("initial"),
		CritiqueResponses: pairResponses("critique"),
	}
	responses, err := engine.ParallelExecutor().ExecuteRound(context.Background(), RoundDefense, "q", rctx, col.emit)
	if err != nil {
		t.Fatalf("ExecuteRound: %v", err)
	}

	for _, resp := range responses {
		want := "revised by " + resp.Model
		if resp.RevisedAnswer != want {
			t.Errorf("revised answer for %s = %q, want %q", resp.Model, resp.RevisedAnswer, want)
		}
		if resp.RevisedAnswer == "" {
			t.Errorf("empty revised answer for %s", resp.Model)
		}
	}
}
