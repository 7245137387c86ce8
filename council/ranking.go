// ABOUTME: Anonymous-ranking pipeline: answers, anonymized peer ranking, aggregation.
// ABOUTME: Stage 1 reuses the initial-round executor; stage 2 is a parallel plain-completion fan-out.

package council

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/2389-research/council/llm"
)

// titleTimeout bounds the cheap title-generation call.
const titleTimeout = 30 * time.Second

// RunRanking runs stages 1 and 2 of the ranking pipeline and returns the
// event stream. The stream ends with ranking_complete carrying the stage
// results and aggregate metadata, or an error event on quorum loss.
// Synthesis is composed separately, as with debates.
func (e *Engine) RunRanking(ctx context.Context, userQuery string, executor RoundExecutor) (<-chan Event, error) {
	events := make(chan Event, 64)
	emit := channelEmitter(ctx, events)

	go func() {
		defer close(events)
		outcome, err := e.rankingStages(ctx, userQuery, executor, emit)
		if err != nil || outcome == nil {
			return
		}
		emit(Event{
			Type:     EventRankingComplete,
			Stage1:   outcome.Stage1,
			Stage2:   outcome.Stage2,
			Metadata: &outcome.Metadata,
		})
	}()

	return events, nil
}

// rankingStages collects stage-1 responses through the executor, anonymizes
// them, fans out the peer-ranking prompt, and aggregates the parsed orders.
// A nil outcome with nil error means quorum was lost and the error event has
// already been emitted.
func (e *Engine) rankingStages(ctx context.Context, userQuery string, executor RoundExecutor, emit EmitFunc) (*RankingOutcome, error) {
	if !emit(Event{Type: EventRoundStart, RoundNumber: 1, RoundType: RoundInitial}) {
		return nil, errStreamClosed
	}
	stage1, err := executor.ExecuteRound(ctx, RoundInitial, userQuery, RoundContext{}, emit)
	if err != nil {
		return nil, err
	}
	if !emit(Event{Type: EventRoundComplete, RoundNumber: 1, RoundType: RoundInitial, Responses: stage1}) {
		return nil, errStreamClosed
	}
	if len(stage1) < quorum {
		emit(Event{Type: EventError, Message: QuorumLostMessage})
		return nil, nil
	}

	labelToModel := assignLabels(stage1)
	stage2, err := e.collectRankings(ctx, userQuery, stage1, emit)
	if err != nil {
		return nil, err
	}

	return &RankingOutcome{
		Stage1: stage1,
		Stage2: stage2,
		Metadata: RankingMetadata{
			LabelToModel: labelToModel,
			Aggregate:    CalculateAggregateRankings(stage2, labelToModel),
		},
	}, nil
}

// assignLabels maps anonymized labels to models, A onward in submission
// order.
func assignLabels(stage1 []ModelResponse) map[string]string {
	labelToModel := make(map[string]string, len(stage1))
	for i, result := range stage1 {
		labelToModel[responseLabel(i)] = result.Model
	}
	return labelToModel
}

func responseLabel(i int) string {
	return fmt.Sprintf("Response %c", rune('A'+i))
}

// collectRankings asks every participant, concurrently, to rank the
// anonymized responses. Participants that fail are dropped; the survivors'
// evaluations are parsed into label orders. Results keep panel order.
func (e *Engine) collectRankings(ctx context.Context, userQuery string, stage1 []ModelResponse, emit EmitFunc) ([]RankingRecord, error) {
	parts := make([]string, 0, len(stage1))
	for i, result := range stage1 {
		parts = append(parts, fmt.Sprintf("%s:\n%s", responseLabel(i), result.Response))
	}
	prompt := BuildRankingPrompt(userQuery, strings.Join(parts, "\n\n"))
	messages := []llm.Message{llm.UserMessage(prompt)}

	for _, model := range e.participants {
		if !emit(Event{Type: EventModelStart, Model: model}) {
			return nil, errStreamClosed
		}
	}

	type outcome struct {
		index int
		text  string
		err   error
	}
	results := make(chan outcome, len(e.participants))

	for i, model := range e.participants {
		go func(i int, model string) {
			pctx, pcancel := context.WithTimeout(ctx, e.modelTimeout)
			defer pcancel()
			resp, err := e.client.Query(pctx, model, messages)
			if err != nil {
				results <- outcome{index: i, err: err}
				return
			}
			results <- outcome{index: i, text: resp.TextContent()}
		}(i, model)
	}

	evaluations := make([]string, len(e.participants))
	failed := make([]bool, len(e.participants))
	for range e.participants {
		out := <-results
		model := e.participants[out.index]
		if out.err != nil {
			failed[out.index] = true
			reason := out.err.Error()
			if errors.Is(out.err, context.DeadlineExceeded) {
				reason = fmt.Sprintf("timeout after %gs", e.modelTimeout.Seconds())
			}
			log.Printf("component=council action=ranking_failed model=%s reason=%q", model, reason)
			if !emit(Event{Type: EventModelError, Model: model, Reason: reason}) {
				return nil, errStreamClosed
			}
			continue
		}
		evaluations[out.index] = out.text
		if !emit(Event{Type: EventModelComplete, Model: model, Response: &ModelResponse{Model: model, Response: out.text}}) {
			return nil, errStreamClosed
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]RankingRecord, 0, len(e.participants))
	for i, model := range e.participants {
		if failed[i] {
			continue
		}
		records = append(records, RankingRecord{
			Model:         model,
			Evaluation:    evaluations[i],
			ParsedRanking: ParseRankingFromText(evaluations[i]),
		})
	}
	return records, nil
}

// GenerateTitle produces a short conversation title from the first user
// message, falling back to a generic one on any failure.
func (e *Engine) GenerateTitle(ctx context.Context, userQuery string) string {
	const fallback = "New Conversation"

	messages := []llm.Message{llm.UserMessage(BuildTitlePrompt(userQuery))}
	resp, err := e.client.QueryWithTimeout(ctx, e.titleModel, messages, titleTimeout)
	if err != nil {
		log.Printf("component=council action=title_failed model=%s error=%v", e.titleModel, err)
		return fallback
	}

	title := strings.TrimSpace(resp.TextContent())
	title = strings.Trim(title, `"'`)
	if title == "" {
		return fallback
	}
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	return title
}
