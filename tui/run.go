// ABOUTME: Entry point that wires the engine, bridge, and Bubble Tea program together.
// ABOUTME: Run blocks until the deliberation finishes or the user quits, returning the synthesis.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/council/council"
)

// Run executes a deliberation with a live terminal display and returns the
// chairman's synthesis. The display is inline (no alt-screen) so the final
// frame stays in the scrollback.
func Run(ctx context.Context, engine *council.Engine, question string, opts council.RunOptions, verbose bool) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewAppModel(question, engine.Participants(), verbose, cancel)
	program := tea.NewProgram(&model, tea.WithContext(ctx))
	bridge := NewEventBridge(program.Send)
	model.SetRunCmd(func() tea.Cmd {
		return RunCouncilCmd(ctx, engine, question, opts, bridge)
	})

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return "", fmt.Errorf("running display: %w", err)
	}

	select {
	case result := <-model.ResultCh():
		return result.Synthesis, result.Err
	default:
		return "", ctx.Err()
	}
}
