// ABOUTME: SDK-backed ProviderAdapter using the official openai-go client with a custom base URL.
// ABOUTME: Alternate gateway driver for OpenRouter and other OpenAI-compatible chat-completions services.

package llm

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatAdapter implements ProviderAdapter on top of the official OpenAI
// SDK. It uses /chat/completions, which is the standard endpoint supported by
// all OpenAI-compatible providers, so pointing it at OpenRouter just means
// swapping the base URL.
type OpenAICompatAdapter struct {
	client openai.Client
	name   string
}

// NewOpenAICompatAdapter creates an SDK-backed adapter. An empty baseURL uses
// the OpenAI platform default.
func NewOpenAICompatAdapter(apiKey, baseURL string) *OpenAICompatAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatAdapter{
		client: openai.NewClient(opts...),
		name:   "openai-compat",
	}
}

func (a *OpenAICompatAdapter) Name() string {
	return a.name
}

// Complete sends a non-streaming completion request through the SDK.
func (a *OpenAICompatAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := convertCompatRequest(req)
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &ProviderError{
			SDKError: SDKError{Message: "chat completion failed", Cause: err},
			Provider: a.name,
			// The SDK already retried; treat surviving errors as transient.
			Retryable: true,
		}
	}
	return convertCompatResponse(resp), nil
}

// Stream sends a streaming request through the SDK. Text deltas are forwarded
// as they arrive; the accumulator supplies the merged terminal response.
func (a *OpenAICompatAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	params := convertCompatRequest(req)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan StreamEvent, 64)

	go func() {
		defer close(ch)

		var acc openai.ChatCompletionAccumulator

		ch <- StreamEvent{Type: StreamStart}

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case ch <- StreamEvent{Type: StreamTextDelta, Delta: chunk.Choices[0].Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- StreamEvent{
				Type: StreamErrorEvt,
				Err:  &StreamError{SDKError: SDKError{Message: "streaming chat completion failed", Cause: err}},
			}
			return
		}

		final := convertCompatResponse(&acc.ChatCompletion)
		ch <- StreamEvent{
			Type:         StreamFinish,
			Content:      final.Message.Content,
			ToolCalls:    final.Message.ToolCalls,
			FinishReason: &final.FinishReason,
			Usage:        &final.Usage,
		}
	}()

	return ch, nil
}

func (a *OpenAICompatAdapter) Close() error {
	return nil
}

// convertCompatRequest converts a gateway Request to SDK params.
func convertCompatRequest(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}

	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case RoleAssistant:
			messages = append(messages, convertCompatAssistantMessage(msg))
		}
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			var schema map[string]any
			_ = json.Unmarshal(tool.Parameters, &schema)
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(schema),
				},
			})
		}
		params.Tools = tools
	}

	return params
}

// convertCompatAssistantMessage converts an assistant message, carrying any
// tool calls in the SDK's param shape.
func convertCompatAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}

	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, tc := range msg.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}

	asstMsg := openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}
	if msg.Content != "" {
		asstMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(msg.Content),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg}
}

// convertCompatResponse converts an SDK ChatCompletion to a gateway Response.
func convertCompatResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		Message:      Message{Role: RoleAssistant},
		FinishReason: FinishReason{Reason: FinishStop},
	}

	if len(resp.Choices) == 0 {
		return result
	}

	choice := resp.Choices[0]
	result.FinishReason = mapFinishReason(string(choice.FinishReason))
	result.Message.Content = choice.Message.Content

	for _, tc := range choice.Message.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls, ToolCallData{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return result
}

// Compile-time interface assertions.
var (
	_ ProviderAdapter = (*OpenRouterAdapter)(nil)
	_ ProviderAdapter = (*OpenAICompatAdapter)(nil)
)
