// ABOUTME: Bridge connecting the council engine's event channel to the Bubble Tea message loop.
// ABOUTME: Provides EventBridge for event injection and a tea.Cmd factory for running a deliberation.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/council/council"
)

// EventBridge wraps a tea.Program's Send method for injecting engine events
// into the Bubble Tea message loop.
type EventBridge struct {
	send func(msg tea.Msg)
}

// NewEventBridge creates an EventBridge that sends messages via the given
// function. Typically called with program.Send as the argument.
func NewEventBridge(send func(msg tea.Msg)) *EventBridge {
	return &EventBridge{send: send}
}

// HandleEvent wraps the event in a CouncilEventMsg and sends it to the TUI.
func (b *EventBridge) HandleEvent(evt council.Event) {
	b.send(CouncilEventMsg{Event: evt})
}

// RunCouncilCmd returns a tea.Cmd that runs a deliberation and forwards every
// event through the bridge. When the event channel closes it sends a
// RunDoneMsg carrying the synthesis, or the terminal error if the run failed.
// The context allows cancellation when the user quits the TUI.
func RunCouncilCmd(ctx context.Context, engine *council.Engine, question string, opts council.RunOptions, bridge *EventBridge) tea.Cmd {
	return func() tea.Msg {
		events, err := engine.Run(ctx, question, opts)
		if err != nil {
			return RunDoneMsg{Err: err}
		}

		var done RunDoneMsg
		for evt := range events {
			bridge.HandleEvent(evt)
			switch evt.Type {
			case council.EventSynthesis:
				done.Synthesis = evt.Content
			case council.EventError:
				done.Err = runError(evt.Message)
			}
		}
		return done
	}
}

// runError turns a terminal error event's message into an error value.
type runError string

func (e runError) Error() string { return string(e) }
