// ABOUTME: Debate orchestrator: one definition of the round sequence, executor-agnostic.
// ABOUTME: A run is initial round plus N critique-defense cycles, always ending on defense.

package council

import (
	"context"
	"fmt"
	"log"
)

// QuorumLostMessage is emitted when too few participants survive a round for
// deliberation to continue.
const QuorumLostMessage = "quorum lost"

// quorum is the minimum number of successful participants an initial or
// defense round needs for the run to continue.
const quorum = 2

type scheduledRound struct {
	number int
	typ    RoundType
}

// buildRoundSequence lays out the rounds for the given cycle count: the
// initial round, then cycles pairs of critique and defense.
func buildRoundSequence(cycles int) []scheduledRound {
	sequence := []scheduledRound{{number: 1, typ: RoundInitial}}
	number := 2
	for i := 0; i < cycles; i++ {
		sequence = append(sequence, scheduledRound{number: number, typ: RoundCritique})
		number++
		sequence = append(sequence, scheduledRound{number: number, typ: RoundDefense})
		number++
	}
	return sequence
}

// RunDebate orchestrates a debate and returns its event stream. The stream
// ends with debate_complete carrying the full transcript, or with an error
// event when quorum is lost. Synthesis is a separate stage the caller
// composes; the orchestrator never emits synthesis events.
//
// cycles counts critique-defense pairs after the initial round and must be at
// least 1, so every debate ends on a defense.
func (e *Engine) RunDebate(ctx context.Context, userQuery string, executor RoundExecutor, cycles int) (<-chan Event, error) {
	if cycles < 1 {
		return nil, fmt.Errorf("cycles must be at least 1, got %d", cycles)
	}

	events := make(chan Event, 64)
	emit := channelEmitter(ctx, events)

	go func() {
		defer close(events)
		e.debateRounds(ctx, userQuery, executor, cycles, emit, true)
	}()

	return events, nil
}

// channelEmitter adapts a channel to EmitFunc. Sends give up when the run
// context is cancelled, which tells producers to stop.
func channelEmitter(ctx context.Context, events chan<- Event) EmitFunc {
	return func(ev Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// debateRounds runs the round sequence against the executor. It returns the
// completed rounds and whether the debate ran to completion with quorum
// intact. When emitComplete is set, debate_complete is emitted on success.
func (e *Engine) debateRounds(ctx context.Context, userQuery string, executor RoundExecutor, cycles int, emit EmitFunc, emitComplete bool) ([]Round, bool) {
	var rounds []Round
	var initial, critiques, current []ModelResponse

	for _, scheduled := range buildRoundSequence(cycles) {
		if !emit(Event{Type: EventRoundStart, RoundNumber: scheduled.number, RoundType: scheduled.typ}) {
			return rounds, false
		}

		rctx := RoundContext{}
		switch scheduled.typ {
		case RoundCritique:
			rctx.InitialResponses = latestResponses(current, initial)
		case RoundDefense:
			rctx.InitialResponses = latestResponses(current, initial)
			rctx.CritiqueResponses = critiques
		}

		responses, err := executor.ExecuteRound(ctx, scheduled.typ, userQuery, rctx, emit)
		if err != nil {
			// Cancelled mid-round; no round_complete may follow.
			log.Printf("component=council action=debate_abort round=%d error=%v", scheduled.number, err)
			return rounds, false
		}

		if !emit(Event{Type: EventRoundComplete, RoundNumber: scheduled.number, RoundType: scheduled.typ, Responses: responses}) {
			return rounds, false
		}
		rounds = append(rounds, Round{RoundNumber: scheduled.number, RoundType: scheduled.typ, Responses: responses})

		switch scheduled.typ {
		case RoundInitial:
			initial = responses
			if len(responses) < quorum {
				emit(Event{Type: EventError, Message: QuorumLostMessage})
				return rounds, false
			}
		case RoundCritique:
			critiques = responses
		case RoundDefense:
			current = responses
			if len(responses) < quorum {
				emit(Event{Type: EventError, Message: QuorumLostMessage})
				return rounds, false
			}
		}
	}

	if emitComplete {
		if !emit(Event{Type: EventDebateComplete, Rounds: rounds}) {
			return rounds, false
		}
	}
	return rounds, true
}

// latestResponses prefers the most recent defense-round responses over the
// initial ones, so later cycles critique the revised positions.
func latestResponses(current, initial []ModelResponse) []ModelResponse {
	if len(current) > 0 {
		return current
	}
	return initial
}
