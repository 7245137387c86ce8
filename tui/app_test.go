// ABOUTME: Tests for the AppModel update loop and view rendering.
// ABOUTME: Feeds council events through Update and asserts on the rendered frames.
package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/council/council"
)

func newTestModel(verbose bool) AppModel {
	return NewAppModel("what is the best language?", []string{"m/a", "m/b"}, verbose, nil)
}

func applyEvent(t *testing.T, m AppModel, evt council.Event) AppModel {
	t.Helper()
	updated, _ := m.Update(CouncilEventMsg{Event: evt})
	next, ok := updated.(AppModel)
	if !ok {
		t.Fatalf("Update returned %T, want AppModel", updated)
	}
	return next
}

func TestAppModelRoundLifecycle(t *testing.T) {
	m := newTestModel(false)

	m = applyEvent(t, m, council.Event{Type: council.EventRoundStart, RoundNumber: 1, RoundType: council.RoundInitial})
	view := m.View()
	if !strings.Contains(view, "Round 1 — initial") {
		t.Errorf("missing round banner:\n%s", view)
	}
	if !strings.Contains(view, "m/a") || !strings.Contains(view, "m/b") {
		t.Errorf("missing member rows:\n%s", view)
	}

	m = applyEvent(t, m, council.Event{Type: council.EventModelStart, Model: "m/a"})
	if m.states["m/a"] != MemberThinking {
		t.Errorf("m/a state = %v, want thinking", m.states["m/a"])
	}
	if !strings.Contains(m.View(), "thinking...") {
		t.Error("thinking row not rendered")
	}

	m = applyEvent(t, m, council.Event{Type: council.EventModelComplete, Model: "m/a"})
	if m.states["m/a"] != MemberDone {
		t.Errorf("m/a state = %v, want done", m.states["m/a"])
	}

	m = applyEvent(t, m, council.Event{Type: council.EventModelError, Model: "m/b", Reason: "timeout"})
	if m.states["m/b"] != MemberFailed {
		t.Errorf("m/b state = %v, want failed", m.states["m/b"])
	}

	m = applyEvent(t, m, council.Event{
		Type:        council.EventRoundComplete,
		RoundNumber: 1,
		RoundType:   council.RoundInitial,
		Responses:   []council.ModelResponse{{Model: "m/a", Response: "x"}},
	})
	view = m.View()
	if !strings.Contains(view, "Round 1 — initial (1 responded)") {
		t.Errorf("missing round summary:\n%s", view)
	}

	// A new round resets member rows to pending.
	m = applyEvent(t, m, council.Event{Type: council.EventRoundStart, RoundNumber: 2, RoundType: council.RoundCritique})
	if m.states["m/a"] != MemberPending || m.states["m/b"] != MemberPending {
		t.Error("round start did not reset member states")
	}
}

func TestAppModelVerboseActivity(t *testing.T) {
	m := newTestModel(true)
	m = applyEvent(t, m, council.Event{Type: council.EventRoundStart, RoundNumber: 1, RoundType: council.RoundInitial})
	m = applyEvent(t, m, council.Event{Type: council.EventModelStart, Model: "m/a"})
	m = applyEvent(t, m, council.Event{Type: council.EventThought, Model: "m/a", Content: "I should search for this"})
	m = applyEvent(t, m, council.Event{Type: council.EventAction, Model: "m/a", Action: "search_web", Arg: "go generics"})
	m = applyEvent(t, m, council.Event{Type: council.EventToolCall, Model: "m/a", Tool: "search_web"})

	view := m.View()
	if !strings.Contains(view, "thought: I should search for this") {
		t.Errorf("missing thought line:\n%s", view)
	}
	if !strings.Contains(view, "action: search_web(go generics)") {
		t.Errorf("missing action line:\n%s", view)
	}

	// Non-verbose models hide activity lines.
	quiet := newTestModel(false)
	quiet = applyEvent(t, quiet, council.Event{Type: council.EventRoundStart, RoundNumber: 1, RoundType: council.RoundInitial})
	quiet = applyEvent(t, quiet, council.Event{Type: council.EventThought, Model: "m/a", Content: "hidden"})
	if strings.Contains(quiet.View(), "hidden") {
		t.Error("activity rendered without verbose")
	}
}

func TestAppModelActivityBuffer(t *testing.T) {
	m := newTestModel(true)
	for i := 0; i < maxActivityLines+3; i++ {
		m = applyEvent(t, m, council.Event{Type: council.EventThought, Model: "m/a", Content: "t"})
	}
	if got := len(m.activity["m/a"]); got != maxActivityLines {
		t.Errorf("activity lines = %d, want %d", got, maxActivityLines)
	}
}

func TestAppModelSynthesis(t *testing.T) {
	m := newTestModel(false)
	m = applyEvent(t, m, council.Event{Type: council.EventToken, Model: "chair", Content: "partial "})
	if !strings.Contains(m.View(), "synthesizing") {
		t.Error("streaming state not shown")
	}

	m = applyEvent(t, m, council.Event{Type: council.EventSynthesis, Model: "chair", Content: "The combined answer."})
	view := m.View()
	if !strings.Contains(view, "Synthesis") {
		t.Errorf("missing synthesis header:\n%s", view)
	}
	if !strings.Contains(view, "combined answer") {
		t.Errorf("missing synthesis body:\n%s", view)
	}
}

func TestAppModelRankingSummary(t *testing.T) {
	m := newTestModel(false)
	m = applyEvent(t, m, council.Event{
		Type: council.EventRankingComplete,
		Metadata: &council.RankingMetadata{
			Aggregate: []council.AggregateEntry{
				{Model: "m/b", AverageRank: 1.33, VoteCount: 3},
				{Model: "m/a", AverageRank: 2.0, VoteCount: 3},
			},
		},
	})
	view := m.View()
	if !strings.Contains(view, "#1 m/b (avg rank 1.33, 3 votes)") {
		t.Errorf("missing aggregate line:\n%s", view)
	}
}

func TestAppModelDone(t *testing.T) {
	m := newTestModel(false)
	updated, cmd := m.Update(RunDoneMsg{Synthesis: "final"})
	next := updated.(AppModel)
	if !next.done {
		t.Error("model not marked done")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("cmd returned %v, want quit", msg)
	}

	select {
	case result := <-next.ResultCh():
		if result.Synthesis != "final" {
			t.Errorf("result synthesis = %q", result.Synthesis)
		}
	default:
		t.Fatal("result channel empty")
	}
}

func TestStreamTail(t *testing.T) {
	got := streamTail("a\nb\nc\nd\n", 2)
	if !strings.Contains(got, "c") || !strings.Contains(got, "d") || strings.Contains(got, "a") {
		t.Errorf("streamTail = %q", got)
	}
}

func TestActivityPreview(t *testing.T) {
	long := strings.Repeat("x", activityPreviewLen+10)
	if got := activityPreview(long); len(got) != activityPreviewLen+3 {
		t.Errorf("preview length = %d", len(got))
	}
	if got := activityPreview("multi\nline"); got != "multi line" {
		t.Errorf("preview = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "sub-second", in: "100ms", want: "0.1s"},
		{name: "seconds", in: "42s", want: "42s"},
		{name: "minutes", in: "2m3s", want: "2m03s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := time.ParseDuration(tc.in)
			if err != nil {
				t.Fatalf("parsing %q: %v", tc.in, err)
			}
			if got := formatDuration(d); got != tc.want {
				t.Errorf("formatDuration(%s) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
