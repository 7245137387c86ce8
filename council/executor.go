// ABOUTME: The two round-execution strategies: batch-parallel and sequential-streaming.
// ABOUTME: Both honor the same ExecuteRound protocol and share one per-participant code path.

package council

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/2389-research/council/llm"
)

// errStreamClosed signals that the event consumer has gone away. Producers
// stop emitting and unwind without touching the round record.
var errStreamClosed = errors.New("event consumer closed")

// RoundExecutor runs one debate round, emitting per-participant events and
// returning the responses in arrival order. An error return means the run was
// cancelled; no round_complete may follow it.
//
// The batch-parallel executor calls emit from multiple goroutines, so
// EmitFunc implementations must be safe for concurrent use.
type RoundExecutor interface {
	ExecuteRound(ctx context.Context, roundType RoundType, userQuery string, rctx RoundContext, emit EmitFunc) ([]ModelResponse, error)
}

// ParallelExecutor runs all participants concurrently and yields results in
// completion order. Token events are suppressed; per-participant reasoning
// and tool events still flow, interleaved across participants.
type ParallelExecutor struct {
	engine *Engine
}

// ParallelExecutor returns the batch-parallel round strategy.
func (e *Engine) ParallelExecutor() *ParallelExecutor {
	return &ParallelExecutor{engine: e}
}

// StreamingExecutor runs participants one at a time in submission order,
// emitting token-level events. Tokens from different participants never
// interleave.
type StreamingExecutor struct {
	engine *Engine
}

// StreamingExecutor returns the sequential-streaming round strategy.
func (e *Engine) StreamingExecutor() *StreamingExecutor {
	return &StreamingExecutor{engine: e}
}

// ExecuteRound launches every participant concurrently with an independent
// timeout, emitting model_start up front and exactly one of model_complete or
// model_error per participant as they finish.
func (x *ParallelExecutor) ExecuteRound(ctx context.Context, roundType RoundType, userQuery string, rctx RoundContext, emit EmitFunc) ([]ModelResponse, error) {
	en := x.engine
	cfg, err := BuildRoundConfig(roundType, userQuery, rctx, en.useReact)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A false emit cancels the round so in-flight participants unwind.
	guarded := func(ev Event) bool {
		if !emit(ev) {
			cancel()
			return false
		}
		return true
	}

	for _, model := range en.participants {
		if !guarded(Event{Type: EventModelStart, Model: model}) {
			return nil, errStreamClosed
		}
	}

	type outcome struct {
		model string
		resp  *ModelResponse
		err   error
	}
	results := make(chan outcome, len(en.participants))

	for _, model := range en.participants {
		go func(model string) {
			pctx, pcancel := context.WithTimeout(ctx, en.modelTimeout)
			defer pcancel()
			resp, err := en.runParticipant(pctx, model, cfg, guarded, false)
			results <- outcome{model: model, resp: resp, err: err}
		}(model)
	}

	var responses []ModelResponse
	for range en.participants {
		out := <-results
		if ctx.Err() != nil {
			// Run cancelled; drain without emitting.
			continue
		}
		if out.err != nil {
			reason := out.err.Error()
			if errors.Is(out.err, context.DeadlineExceeded) {
				reason = fmt.Sprintf("timeout after %gs", en.modelTimeout.Seconds())
			}
			log.Printf("component=council action=model_failed round=%s model=%s reason=%q", roundType, out.model, reason)
			if !guarded(Event{Type: EventModelError, Model: out.model, Reason: reason}) {
				continue
			}
			continue
		}
		if !guarded(Event{Type: EventModelComplete, Model: out.model, Response: out.resp}) {
			continue
		}
		responses = append(responses, *out.resp)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return responses, nil
}

// ExecuteRound streams each participant in turn. A participant that errors
// mid-stream gets model_error and never a model_complete; one that streams
// no content is silently absent from the round.
func (x *StreamingExecutor) ExecuteRound(ctx context.Context, roundType RoundType, userQuery string, rctx RoundContext, emit EmitFunc) ([]ModelResponse, error) {
	en := x.engine
	cfg, err := BuildRoundConfig(roundType, userQuery, rctx, en.useReact)
	if err != nil {
		return nil, err
	}

	var responses []ModelResponse
	for _, model := range en.participants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !emit(Event{Type: EventModelStart, Model: model}) {
			return nil, errStreamClosed
		}

		pctx, pcancel := context.WithTimeout(ctx, en.modelTimeout)
		resp, err := en.runParticipant(pctx, model, cfg, emit, true)
		pcancel()

		if err != nil {
			if errors.Is(err, errStreamClosed) {
				return nil, err
			}
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			reason := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				reason = fmt.Sprintf("timeout after %gs", en.modelTimeout.Seconds())
			}
			log.Printf("component=council action=model_failed round=%s model=%s reason=%q", roundType, model, reason)
			if !emit(Event{Type: EventModelError, Model: model, Reason: reason}) {
				return nil, errStreamClosed
			}
			continue
		}

		if resp.Response == "" {
			continue
		}
		responses = append(responses, *resp)
		if !emit(Event{Type: EventModelComplete, Model: model, Response: resp}) {
			return nil, errStreamClosed
		}
	}

	return responses, nil
}

// runParticipant produces one participant's response for a round, dispatching
// on the round config: ReAct loop, native tool loop, or a plain completion.
// Streaming mode emits token events; parallel mode keeps them off so tokens
// from concurrent participants never interleave.
func (e *Engine) runParticipant(ctx context.Context, model string, cfg RoundConfig, emit EmitFunc, streaming bool) (*ModelResponse, error) {
	prompt := cfg.BuildPrompt(model)
	messages := []llm.Message{llm.UserMessage(prompt)}

	var content string
	var records []llm.ToolCallRecord
	var err error
	reasoned := false

	switch {
	case cfg.UsesReact:
		content, records, err = e.reactLoop(ctx, model, prompt, emit, streaming)
		reasoned = true

	case cfg.UsesTools:
		if streaming {
			content, records, err = e.streamWithTools(ctx, model, messages, emit)
		} else {
			var outcome *llm.ToolOutcome
			outcome, err = e.client.QueryWithTools(ctx, model, messages, e.registry.Definitions(), e.registry.Executor())
			if err == nil {
				content = outcome.Content
				records = outcome.ToolCallsMade
			}
		}

	default:
		if streaming {
			content, err = e.streamText(ctx, model, messages, emit, true)
		} else {
			var resp *llm.Response
			resp, err = e.client.Query(ctx, model, messages)
			if err == nil {
				content = resp.TextContent()
			}
		}
	}
	if err != nil {
		return nil, err
	}

	result := &ModelResponse{
		Model:         model,
		Response:      content,
		Reasoned:      reasoned,
		ToolCallsMade: records,
	}
	if cfg.HasRevisedAnswer {
		result.RevisedAnswer = ParseRevisedAnswer(content)
	}
	return result, nil
}

// streamWithTools drives the gateway's streaming tool loop for one
// participant, translating gateway events into deliberation events.
func (e *Engine) streamWithTools(ctx context.Context, model string, messages []llm.Message, emit EmitFunc) (string, []llm.ToolCallRecord, error) {
	ch := e.client.StreamWithTools(ctx, model, messages, e.registry.Definitions(), e.registry.Executor())

	closed := false
	var content string
	var records []llm.ToolCallRecord
	var streamErr error
	done := false

	for evt := range ch {
		if closed {
			continue
		}
		switch evt.Type {
		case llm.ToolStreamToken:
			if !emit(Event{Type: EventToken, Model: model, Content: evt.Delta}) {
				closed = true
			}
		case llm.ToolStreamToolCall:
			if !emit(Event{Type: EventToolCall, Model: model, Tool: evt.Tool, Args: evt.Args}) {
				closed = true
			}
		case llm.ToolStreamToolResult:
			if !emit(Event{Type: EventToolResult, Model: model, Tool: evt.Tool, Result: evt.Result}) {
				closed = true
			}
		case llm.ToolStreamDone:
			content = evt.Content
			records = evt.ToolCallsMade
			done = true
		case llm.ToolStreamError:
			streamErr = evt.Err
		}
	}

	if closed {
		return "", nil, errStreamClosed
	}
	if streamErr != nil {
		return "", nil, streamErr
	}
	if !done {
		return "", nil, fmt.Errorf("stream for %s ended without terminal event", model)
	}
	return content, records, nil
}

// streamText runs one plain streaming completion, optionally emitting token
// events, and returns the accumulated content.
func (e *Engine) streamText(ctx context.Context, model string, messages []llm.Message, emit EmitFunc, emitTokens bool) (string, error) {
	ch, err := e.client.Stream(ctx, model, messages)
	if err != nil {
		return "", err
	}

	closed := false
	var content string
	var streamErr error
	finished := false

	for evt := range ch {
		switch evt.Type {
		case llm.StreamTextDelta:
			if emitTokens && !closed {
				if !emit(Event{Type: EventToken, Model: model, Content: evt.Delta}) {
					closed = true
				}
			}
		case llm.StreamFinish:
			content = evt.Content
			finished = true
		case llm.StreamErrorEvt:
			streamErr = evt.Err
		}
	}

	if closed {
		return "", errStreamClosed
	}
	if streamErr != nil {
		return "", streamErr
	}
	if !finished {
		return "", fmt.Errorf("stream for %s ended without finish event", model)
	}
	return content, nil
}
