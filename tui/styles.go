// ABOUTME: Defines lipgloss style constants for the live deliberation view.
// ABOUTME: Provides StyleForState to map MemberState values to their display styles.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Header and round banners
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))
	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	// Member row colors
	PendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	DoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// ReAct and tool activity lines under a thinking member
	ActivityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Synthesis section
	SynthesisHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("42"))
)

// StyleForState returns the appropriate lipgloss style for a MemberState.
func StyleForState(state MemberState) lipgloss.Style {
	switch state {
	case MemberPending:
		return PendingStyle
	case MemberThinking:
		return ThinkingStyle
	case MemberDone:
		return DoneStyle
	case MemberFailed:
		return FailedStyle
	default:
		return PendingStyle
	}
}
