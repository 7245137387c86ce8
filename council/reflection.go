// ABOUTME: Reflection synthesis: one streaming chairman call, split at the Synthesis header.
// ABOUTME: No tools and no iteration; the chairman reasons over the transcript it is given.

package council

import (
	"context"
	"errors"
	"log"

	"github.com/2389-research/council/llm"
)

// SynthesizeWithReflection streams a single chairman completion over the
// given transcript context. Consumers see token events, then a reflection
// event with the analysis segment (possibly empty), then the synthesis event.
// On a stream failure an error event is emitted instead and no synthesis
// follows.
func (e *Engine) SynthesizeWithReflection(ctx context.Context, transcriptContext string, emit EmitFunc) (*ModelResponse, error) {
	prompt := BuildReflectionPrompt(transcriptContext)
	messages := []llm.Message{llm.UserMessage(prompt)}

	content, err := e.streamText(ctx, e.chairman, messages, emit, true)
	if err != nil {
		if errors.Is(err, errStreamClosed) {
			return nil, err
		}
		log.Printf("component=council action=synthesis_failed chairman=%s error=%v", e.chairman, err)
		emit(Event{Type: EventError, Message: err.Error()})
		return nil, err
	}

	reflection, synthesis := ParseReflectionOutput(content)
	if !emit(Event{Type: EventReflection, Content: reflection}) {
		return nil, errStreamClosed
	}
	result := &ModelResponse{Model: e.chairman, Response: synthesis}
	if !emit(Event{Type: EventSynthesis, Model: e.chairman, Content: synthesis}) {
		return nil, errStreamClosed
	}
	return result, nil
}
