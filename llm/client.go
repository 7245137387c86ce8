// ABOUTME: Gateway client exposing Query, Stream, QueryWithTools, and StreamWithTools.
// ABOUTME: Owns per-request timeouts, retry policy, and the bounded tool-execution loop.

package llm

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// MaxToolCallsFallback is the terminal content used when the tool loop
// exhausts its iteration budget without the model producing a final answer.
const MaxToolCallsFallback = "Max tool calls reached without final response."

// DefaultMaxToolCalls bounds how many completion rounds a tool loop may run.
const DefaultMaxToolCalls = 5

// ToolExecutor runs a named tool and returns its result as a string. It is
// total: execution problems come back as result text, never as an error.
type ToolExecutor func(ctx context.Context, name string, args json.RawMessage) string

// ToolCallRecord describes one executed tool call, with a preview of the
// result capped at 200 characters.
type ToolCallRecord struct {
	Tool          string         `json:"tool"`
	Args          map[string]any `json:"args"`
	ResultPreview string         `json:"result_preview"`
}

// ToolOutcome is the terminal result of a tool loop.
type ToolOutcome struct {
	Content       string           `json:"content"`
	ToolCallsMade []ToolCallRecord `json:"tool_calls_made,omitempty"`
	Usage         Usage            `json:"usage"`
}

// ToolStreamEventType discriminates events from StreamWithTools.
type ToolStreamEventType string

const (
	ToolStreamToken      ToolStreamEventType = "token"
	ToolStreamToolCall   ToolStreamEventType = "tool_call"
	ToolStreamToolResult ToolStreamEventType = "tool_result"
	ToolStreamDone       ToolStreamEventType = "done"
	ToolStreamError      ToolStreamEventType = "error"
)

// ToolStreamEvent is a single event from a streaming tool loop.
type ToolStreamEvent struct {
	Type          ToolStreamEventType `json:"type"`
	Delta         string              `json:"delta,omitempty"`
	Tool          string              `json:"tool,omitempty"`
	Args          map[string]any      `json:"args,omitempty"`
	Result        string              `json:"result,omitempty"`
	Content       string              `json:"content,omitempty"`
	ToolCallsMade []ToolCallRecord    `json:"tool_calls_made,omitempty"`
	Err           error               `json:"-"`
}

// Client wraps a ProviderAdapter with timeouts, retries, and tool loops. It is
// the only type the engine talks to.
type Client struct {
	adapter      ProviderAdapter
	retry        RetryPolicy
	timeout      time.Duration
	maxToolCalls int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithRequestTimeout overrides the default 120s per-request timeout.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxToolCalls overrides the tool-loop iteration budget.
func WithMaxToolCalls(n int) ClientOption {
	return func(c *Client) {
		c.maxToolCalls = n
	}
}

// NewClient creates a gateway client around the given adapter.
func NewClient(adapter ProviderAdapter, opts ...ClientOption) *Client {
	c := &Client{
		adapter:      adapter,
		retry:        DefaultRetryPolicy(),
		timeout:      DefaultAdapterTimeout().Request,
		maxToolCalls: DefaultMaxToolCalls,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-request timeout the client applies.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Close releases adapter resources.
func (c *Client) Close() error {
	return c.adapter.Close()
}

// Query sends a single completion request with timeout and retry.
func (c *Client) Query(ctx context.Context, model string, messages []Message) (*Response, error) {
	return c.QueryWithTimeout(ctx, model, messages, c.timeout)
}

// QueryWithTimeout is Query with a caller-supplied timeout override.
func (c *Client) QueryWithTimeout(ctx context.Context, model string, messages []Message, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.completeWithRetry(ctx, Request{Model: model, Messages: messages})
}

func (c *Client) complete(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.completeWithRetry(ctx, req)
}

func (c *Client) completeWithRetry(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := Retry(ctx, c.retry, func() error {
		var callErr error
		resp, callErr = c.adapter.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream sends a streaming completion request. No retry: a partially consumed
// stream cannot be transparently replayed.
func (c *Client) Stream(ctx context.Context, model string, messages []Message) (<-chan StreamEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	ch, err := c.adapter.Stream(ctx, Request{Model: model, Messages: messages})
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan StreamEvent, 64)
	go func() {
		defer cancel()
		defer close(out)
		for evt := range ch {
			out <- evt
		}
	}()
	return out, nil
}

// QueryWithTools runs the bounded tool loop: complete, execute any requested
// tools in order, append results, and repeat until the model answers without
// tools or the iteration budget is spent.
func (c *Client) QueryWithTools(ctx context.Context, model string, messages []Message, tools []ToolDefinition, exec ToolExecutor) (*ToolOutcome, error) {
	working := append([]Message(nil), messages...)
	outcome := &ToolOutcome{}

	for i := 0; ; i++ {
		resp, err := c.complete(ctx, Request{Model: model, Messages: working, Tools: tools})
		if err != nil {
			return nil, err
		}
		outcome.Usage = outcome.Usage.Add(resp.Usage)

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			outcome.Content = resp.TextContent()
			return outcome, nil
		}

		// Budget counts tool-execution rounds. When it is spent, the last
		// assistant reply comes back verbatim with its calls unexecuted.
		if i >= c.maxToolCalls {
			outcome.Content = resp.TextContent()
			if outcome.Content == "" {
				outcome.Content = MaxToolCallsFallback
			}
			return outcome, nil
		}

		// The assistant message goes back verbatim so the provider can match
		// tool results to the calls it issued.
		working = append(working, resp.Message)
		working, outcome.ToolCallsMade = c.runToolCalls(ctx, model, calls, working, outcome.ToolCallsMade, exec, nil)
	}
}

// StreamWithTools runs the same bounded loop over the streaming endpoint,
// emitting token deltas and tool notifications. The returned channel is closed
// after the terminal done or error event.
func (c *Client) StreamWithTools(ctx context.Context, model string, messages []Message, tools []ToolDefinition, exec ToolExecutor) <-chan ToolStreamEvent {
	out := make(chan ToolStreamEvent, 64)

	go func() {
		defer close(out)

		working := append([]Message(nil), messages...)
		var records []ToolCallRecord

		for i := 0; ; i++ {
			streamCtx, cancel := context.WithTimeout(ctx, c.timeout)
			ch, err := c.adapter.Stream(streamCtx, Request{Model: model, Messages: working, Tools: tools})
			if err != nil {
				cancel()
				out <- ToolStreamEvent{Type: ToolStreamError, Err: err}
				return
			}

			var finish *StreamEvent
			var streamErr error
			for evt := range ch {
				switch evt.Type {
				case StreamTextDelta:
					out <- ToolStreamEvent{Type: ToolStreamToken, Delta: evt.Delta}
				case StreamFinish:
					final := evt
					finish = &final
				case StreamErrorEvt:
					streamErr = evt.Err
				}
			}
			cancel()

			if streamErr != nil {
				out <- ToolStreamEvent{Type: ToolStreamError, Err: streamErr}
				return
			}
			if finish == nil {
				out <- ToolStreamEvent{Type: ToolStreamError, Err: &StreamError{SDKError: SDKError{Message: "stream ended without finish event"}}}
				return
			}

			if len(finish.ToolCalls) == 0 {
				out <- ToolStreamEvent{Type: ToolStreamDone, Content: finish.Content, ToolCallsMade: records}
				return
			}

			// Budget spent with tools still pending. Terminal done still
			// fires so consumers never hang; content falls back when the
			// model never spoke.
			if i >= c.maxToolCalls {
				content := finish.Content
				if content == "" {
					content = MaxToolCallsFallback
				}
				out <- ToolStreamEvent{Type: ToolStreamDone, Content: content, ToolCallsMade: records}
				return
			}

			working = append(working, Message{
				Role:      RoleAssistant,
				Content:   finish.Content,
				ToolCalls: finish.ToolCalls,
			})
			working, records = c.runToolCalls(ctx, model, finish.ToolCalls, working, records, exec, out)
		}
	}()

	return out
}

// runToolCalls executes tool calls in request order, appending tool messages
// and records. When notify is non-nil, tool_call/tool_result events are
// emitted around each execution.
func (c *Client) runToolCalls(ctx context.Context, model string, calls []ToolCallData, working []Message, records []ToolCallRecord, exec ToolExecutor, notify chan<- ToolStreamEvent) ([]Message, []ToolCallRecord) {
	for _, call := range calls {
		args, argErr := call.ArgumentsMap()
		if argErr != nil {
			args = nil
		}
		if notify != nil {
			notify <- ToolStreamEvent{Type: ToolStreamToolCall, Tool: call.Name, Args: args}
		}

		log.Printf("component=llm action=tool_exec model=%s tool=%s", model, call.Name)
		result := exec(ctx, call.Name, call.Arguments)

		preview := Preview(result, 200)
		records = append(records, ToolCallRecord{Tool: call.Name, Args: args, ResultPreview: preview})
		if notify != nil {
			notify <- ToolStreamEvent{Type: ToolStreamToolResult, Tool: call.Name, Result: preview}
		}

		working = append(working, ToolResultMessage(call.ID, result))
	}
	return working, records
}

// Preview truncates s to max characters, appending an ellipsis when trimmed.
func Preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
