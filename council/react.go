// ABOUTME: Text-based ReAct loop for a single participant.
// ABOUTME: The model reasons in Thought/Action steps, searches when it wants, and ends with respond().

package council

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/2389-research/council/llm"
	"github.com/2389-research/council/tools"
)

const reactRetryMessage = `Please respond with a valid Action: either search_web("query") or respond()`

const reactForceAnswerMessage = "Please provide your final answer now (no Thought/Action format, just the answer):"

const reactObservationSuffix = "\n\nContinue your reasoning:"

// reactLoop runs the bounded Thought/Action/Observation loop for one
// participant. Each iteration streams one completion, parses it, and either
// terminates with an answer, executes a search and continues, or nudges the
// model back into the protocol. When the iteration budget is spent on
// searches, one forced final pass asks the model to answer outright.
func (e *Engine) reactLoop(ctx context.Context, model, prompt string, emit EmitFunc, emitTokens bool) (string, []llm.ToolCallRecord, error) {
	messages := []llm.Message{llm.UserMessage(prompt)}
	var records []llm.ToolCallRecord

	for iteration := 1; iteration <= e.maxReactIter; iteration++ {
		content, err := e.streamText(ctx, model, messages, emit, emitTokens)
		if err != nil {
			return "", nil, err
		}

		thought, action, arg := ParseReactOutput(content)
		if thought != "" {
			if !emit(Event{Type: EventThought, Model: model, Content: thought}) {
				return "", nil, errStreamClosed
			}
		}

		switch action {
		case ActionRespond, ActionSynthesize:
			if !emit(Event{Type: EventAction, Model: model, Action: ActionRespond}) {
				return "", nil, errStreamClosed
			}
			return ExtractFinalAnswer(content, action), records, nil

		case ActionSearchWeb:
			observation, err := e.reactSearch(ctx, model, arg, emit, &records)
			if err != nil {
				return "", nil, err
			}
			messages = append(messages,
				llm.AssistantMessage(content),
				llm.UserMessage("Observation: "+observation+reactObservationSuffix),
			)

		default:
			// Plain text with no recognized action is treated as the answer.
			if answer := strings.TrimSpace(content); answer != "" {
				return answer, records, nil
			}
			if iteration < e.maxReactIter {
				messages = append(messages,
					llm.AssistantMessage(content),
					llm.UserMessage(reactRetryMessage),
				)
			}
		}
	}

	// Budget spent without a terminal action. One forced pass for the answer.
	log.Printf("component=council action=react_force_answer model=%s", model)
	messages = append(messages, llm.UserMessage(reactForceAnswerMessage))
	content, err := e.streamText(ctx, model, messages, emit, emitTokens)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(content), records, nil
}

// reactSearch executes one search_web action, emitting the action, tool, and
// observation events around it.
func (e *Engine) reactSearch(ctx context.Context, model, query string, emit EmitFunc, records *[]llm.ToolCallRecord) (string, error) {
	if !emit(Event{Type: EventAction, Model: model, Action: ActionSearchWeb, Arg: query}) {
		return "", errStreamClosed
	}

	args := map[string]any{"query": query}
	if !emit(Event{Type: EventToolCall, Model: model, Tool: tools.SearchToolName, Args: args}) {
		return "", errStreamClosed
	}

	rawArgs, err := json.Marshal(args)
	if err != nil {
		rawArgs = json.RawMessage(`{}`)
	}
	observation := e.registry.Execute(ctx, tools.SearchToolName, rawArgs)

	*records = append(*records, llm.ToolCallRecord{
		Tool:          tools.SearchToolName,
		Args:          args,
		ResultPreview: llm.Preview(observation, 200),
	})

	if !emit(Event{Type: EventToolResult, Model: model, Tool: tools.SearchToolName, Result: observation}) {
		return "", errStreamClosed
	}
	if !emit(Event{Type: EventObservation, Model: model, Content: observation}) {
		return "", errStreamClosed
	}
	return observation, nil
}
