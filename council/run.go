// ABOUTME: Composed entrypoint: full deliberation runs including chairman synthesis.
// ABOUTME: This is what the CLI, web server, and TUI consume.

package council

import (
	"context"
	"fmt"
)

// Mode selects the deliberation protocol.
type Mode string

const (
	// ModeRanking runs answers, anonymized peer ranking, and synthesis.
	ModeRanking Mode = "ranking"
	// ModeDebate runs the structured debate protocol and synthesis.
	ModeDebate Mode = "debate"
)

// RunOptions configures one deliberation run.
type RunOptions struct {
	// Mode defaults to ModeRanking.
	Mode Mode
	// Streaming selects the sequential token-streaming executor instead of
	// the default batch-parallel one.
	Streaming bool
	// Cycles is the number of critique-defense pairs in debate mode.
	// Defaults to 1; must be at least 1.
	Cycles int
}

// Run executes a full deliberation: the selected protocol followed by
// chairman synthesis. The returned stream ends with the synthesis event, or
// with an error event when the run cannot complete.
func (e *Engine) Run(ctx context.Context, userQuery string, opts RunOptions) (<-chan Event, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeRanking
	}
	cycles := opts.Cycles
	if cycles == 0 {
		cycles = 1
	}

	switch mode {
	case ModeRanking:
	case ModeDebate:
		if cycles < 1 {
			return nil, fmt.Errorf("cycles must be at least 1, got %d", cycles)
		}
	default:
		return nil, fmt.Errorf("unknown mode: %s", mode)
	}

	var executor RoundExecutor = e.ParallelExecutor()
	if opts.Streaming {
		executor = e.StreamingExecutor()
	}

	events := make(chan Event, 64)
	emit := channelEmitter(ctx, events)

	go func() {
		defer close(events)

		switch mode {
		case ModeDebate:
			rounds, ok := e.debateRounds(ctx, userQuery, executor, cycles, emit, true)
			if !ok {
				return
			}
			e.SynthesizeWithReflection(ctx, BuildDebateContext(userQuery, rounds), emit)

		case ModeRanking:
			outcome, err := e.rankingStages(ctx, userQuery, executor, emit)
			if err != nil || outcome == nil {
				return
			}
			if !emit(Event{Type: EventRankingComplete, Stage1: outcome.Stage1, Stage2: outcome.Stage2, Metadata: &outcome.Metadata}) {
				return
			}
			e.SynthesizeWithReflection(ctx, BuildRankingContext(userQuery, outcome.Stage1, outcome.Stage2), emit)
		}
	}()

	return events, nil
}
