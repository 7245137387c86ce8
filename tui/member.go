// ABOUTME: Defines the MemberState enum representing a council member's state within a round.
// ABOUTME: Provides String/Icon methods for TUI rendering.
package tui

// MemberState represents one council member's progress in the current round.
type MemberState int

const (
	MemberPending  MemberState = iota // member has not started this round
	MemberThinking                    // member is generating a response
	MemberDone                        // member responded
	MemberFailed                      // member errored out of this round
)

// String returns the lowercase name of the state.
func (s MemberState) String() string {
	switch s {
	case MemberPending:
		return "pending"
	case MemberThinking:
		return "thinking"
	case MemberDone:
		return "done"
	case MemberFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Icon returns a status marker for TUI display.
func (s MemberState) Icon() string {
	switch s {
	case MemberPending:
		return " "
	case MemberThinking:
		return "~"
	case MemberDone:
		return "✓"
	case MemberFailed:
		return "✗"
	default:
		return "?"
	}
}
