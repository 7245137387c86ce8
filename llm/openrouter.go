// ABOUTME: Native OpenRouter adapter speaking the OpenAI chat-completions wire format.
// ABOUTME: Handles completion and SSE streaming with tool-call fragment merging keyed by choice index.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/2389-research/council/llm/sse"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterAdapter is a ProviderAdapter for OpenRouter (or any other
// OpenAI-compatible chat-completions endpoint) built on raw net/http.
type OpenRouterAdapter struct {
	*BaseAdapter
}

// OpenRouterOption configures an OpenRouterAdapter.
type OpenRouterOption func(*OpenRouterAdapter)

// WithOpenRouterBaseURL overrides the default API base URL.
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(a *OpenRouterAdapter) {
		a.BaseURL = url
	}
}

// WithOpenRouterTimeout overrides the default adapter timeouts.
func WithOpenRouterTimeout(timeout AdapterTimeout) OpenRouterOption {
	return func(a *OpenRouterAdapter) {
		a.Timeout = timeout
	}
}

// WithOpenRouterHTTPClient replaces the underlying HTTP client (used in tests).
func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(a *OpenRouterAdapter) {
		a.HTTPClient = client
	}
}

// NewOpenRouterAdapter creates an adapter for the given API key.
func NewOpenRouterAdapter(apiKey string, opts ...OpenRouterOption) *OpenRouterAdapter {
	a := &OpenRouterAdapter{
		BaseAdapter: NewBaseAdapter(apiKey, defaultOpenRouterBaseURL, DefaultAdapterTimeout()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *OpenRouterAdapter) Name() string {
	return "openrouter"
}

// Wire types for the chat-completions request and response bodies.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatDelta   `json:"delta,omitempty"`
	FinishReason string       `json:"finish_reason"`
}

type chatDelta struct {
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete sends a non-streaming completion request.
func (a *OpenRouterAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	body := a.buildRequestBody(req, false)

	resp, err := a.DoRequest(ctx, http.MethodPost, "/chat/completions", body, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.parseError(resp.StatusCode, respBody)
	}

	return a.parseResponse(respBody)
}

// Stream sends a streaming completion request. The returned channel carries
// text deltas followed by a terminal finish event with the full content and
// any merged tool calls; it is closed when the stream ends.
func (a *OpenRouterAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	body := a.buildRequestBody(req, true)

	resp, err := a.DoRequest(ctx, http.MethodPost, "/chat/completions", body, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("reading error response body: %w", readErr)
		}
		return nil, a.parseError(resp.StatusCode, respBody)
	}

	ch := make(chan StreamEvent, 64)
	go a.processStream(ctx, resp.Body, ch)

	return ch, nil
}

func (a *OpenRouterAdapter) Close() error {
	a.HTTPClient.CloseIdleConnections()
	return nil
}

func (a *OpenRouterAdapter) buildRequestBody(req Request, stream bool) chatRequest {
	body := chatRequest{
		Model:       req.Model,
		Messages:    translateMessages(req.Messages),
		Stream:      stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return body
}

func translateMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		cm := chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func (a *OpenRouterAdapter) parseResponse(body []byte) (*Response, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{
			SDKError: SDKError{Message: "response contained no choices"},
			Provider: a.Name(),
		}
	}

	choice := parsed.Choices[0]
	msg := Message{Role: RoleAssistant}
	if choice.Message != nil {
		msg.Content = choice.Message.Content
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCallData{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}

	resp := &Response{
		ID:           parsed.ID,
		Model:        parsed.Model,
		Message:      msg,
		FinishReason: mapFinishReason(choice.FinishReason),
	}
	if parsed.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
	}
	return resp, nil
}

func mapFinishReason(raw string) FinishReason {
	switch raw {
	case "stop":
		return FinishReason{Reason: FinishStop, Raw: raw}
	case "length":
		return FinishReason{Reason: FinishLength, Raw: raw}
	case "tool_calls":
		return FinishReason{Reason: FinishToolCalls, Raw: raw}
	case "error":
		return FinishReason{Reason: FinishError, Raw: raw}
	default:
		return FinishReason{Reason: FinishOther, Raw: raw}
	}
}

func (a *OpenRouterAdapter) parseError(statusCode int, body []byte) error {
	message := fmt.Sprintf("openrouter request failed with status %d", statusCode)
	errorCode := ""

	var parsed chatErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
		errorCode = fmt.Sprintf("%v", parsed.Error.Code)
	}

	return ErrorFromStatusCode(statusCode, message, a.Name(), errorCode, json.RawMessage(body), nil)
}

// pendingToolCall accumulates streamed tool-call fragments for one choice index.
// The id and name are latched on first appearance; argument fragments append.
type pendingToolCall struct {
	id   string
	name string
	args []byte
}

// processStream reads SSE events from the response body, forwards text deltas,
// merges tool-call fragments, and emits a terminal finish event. The channel
// is always closed on return.
func (a *OpenRouterAdapter) processStream(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	parser := sse.NewParser(body)

	var content string
	pending := make(map[int]*pendingToolCall)
	var pendingOrder []int
	finish := FinishReason{Reason: FinishStop}
	var usage *Usage

	send := func(evt StreamEvent) bool {
		select {
		case ch <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(StreamEvent{Type: StreamStart}) {
		return
	}

	for {
		event, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			send(StreamEvent{Type: StreamErrorEvt, Err: &StreamError{SDKError: SDKError{Message: "reading stream", Cause: err}}})
			return
		}

		if event.Data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			// Malformed chunks are skipped rather than killing the stream.
			continue
		}
		if len(chunk.Choices) == 0 {
			if chunk.Usage != nil {
				usage = &Usage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
					TotalTokens:  chunk.Usage.TotalTokens,
				}
			}
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finish = mapFinishReason(choice.FinishReason)
		}
		if chunk.Usage != nil {
			usage = &Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}
		if choice.Delta == nil {
			continue
		}

		if choice.Delta.Content != "" {
			content += choice.Delta.Content
			if !send(StreamEvent{Type: StreamTextDelta, Delta: choice.Delta.Content}) {
				return
			}
		}

		for _, frag := range choice.Delta.ToolCalls {
			idx := 0
			if frag.Index != nil {
				idx = *frag.Index
			}
			pc, ok := pending[idx]
			if !ok {
				pc = &pendingToolCall{}
				pending[idx] = pc
				pendingOrder = append(pendingOrder, idx)
			}
			if frag.ID != "" && pc.id == "" {
				pc.id = frag.ID
			}
			if frag.Function.Name != "" && pc.name == "" {
				pc.name = frag.Function.Name
			}
			pc.args = append(pc.args, frag.Function.Arguments...)
		}
	}

	var toolCalls []ToolCallData
	sort.Ints(pendingOrder)
	for _, idx := range pendingOrder {
		pc := pending[idx]
		toolCalls = append(toolCalls, ToolCallData{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: json.RawMessage(pc.args),
		})
	}
	if len(toolCalls) > 0 && finish.Reason == FinishStop && finish.Raw == "" {
		finish = FinishReason{Reason: FinishToolCalls}
	}

	send(StreamEvent{
		Type:         StreamFinish,
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: &finish,
		Usage:        usage,
	})
}
