// ABOUTME: Bubble Tea message types used in the TUI message loop.
// ABOUTME: Each type wraps domain events for the tea.Msg interface (which is interface{}).
package tui

import (
	"github.com/2389-research/council/council"
)

// CouncilEventMsg wraps a council.Event for the Bubble Tea message loop.
type CouncilEventMsg struct {
	Event council.Event
}

// RunDoneMsg signals that the deliberation has finished. Synthesis carries
// the chairman's final answer when the run succeeded.
type RunDoneMsg struct {
	Synthesis string
	Err       error
}
