// ABOUTME: AppModel is an inline Bubble Tea model for live deliberation progress in the terminal.
// ABOUTME: Displays per-member status rows, round banners, optional ReAct activity, and the glamour-rendered synthesis.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/2389-research/council/council"
)

// maxActivityLines limits the number of ReAct/tool lines retained per member.
const maxActivityLines = 4

// activityPreviewLen bounds activity line length so member rows stay on one line.
const activityPreviewLen = 70

// AppModel is an inline (non-alt-screen) Bubble Tea model that displays a
// deliberation as member status rows under round banners, with the final
// synthesis rendered as markdown when the run completes.
type AppModel struct {
	question string
	verbose  bool
	cancel   context.CancelFunc

	// Member tracking, in panel order.
	members   []string
	states    map[string]MemberState
	startedAt map[string]time.Time
	durations map[string]time.Duration

	// ReAct and tool events (verbose mode), member → recent lines.
	activity map[string][]string

	// Completed round summaries plus the in-flight round banner.
	rounds       []string
	currentRound string

	// Chairman output: streamed tokens, then the terminal synthesis event.
	streamed  string
	synthesis string

	spinner spinner.Model
	start   time.Time
	done    bool
	err     error
	width   int

	runCmd   func() tea.Cmd
	resultCh chan RunDoneMsg
}

// NewAppModel creates an AppModel for the given panel. The cancel function is
// invoked when the user quits mid-run.
func NewAppModel(question string, members []string, verbose bool, cancel context.CancelFunc) AppModel {
	if cancel == nil {
		cancel = func() {}
	}

	states := make(map[string]MemberState, len(members))
	for _, m := range members {
		states[m] = MemberPending
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ThinkingStyle

	return AppModel{
		question:  question,
		verbose:   verbose,
		cancel:    cancel,
		members:   append([]string(nil), members...),
		states:    states,
		startedAt: make(map[string]time.Time),
		durations: make(map[string]time.Duration),
		activity:  make(map[string][]string),
		spinner:   sp,
		start:     time.Now(),
		width:     80,
		resultCh:  make(chan RunDoneMsg, 1),
	}
}

// SetRunCmd sets the command that starts the deliberation. Must be called
// before the program starts.
func (m *AppModel) SetRunCmd(fn func() tea.Cmd) {
	m.runCmd = fn
}

// ResultCh returns a channel that receives the run result after the program
// exits. The caller should read from this after tea.Program.Run() completes.
func (m *AppModel) ResultCh() <-chan RunDoneMsg {
	return m.resultCh
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.runCmd != nil {
		cmds = append(cmds, m.runCmd())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case CouncilEventMsg:
		return m.handleEvent(msg.Event), nil

	case RunDoneMsg:
		return m.handleDone(msg)

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	}

	return m, nil
}

// handleEvent folds one deliberation event into the display state.
func (m AppModel) handleEvent(evt council.Event) AppModel {
	switch evt.Type {
	case council.EventRoundStart:
		m.currentRound = fmt.Sprintf("Round %d — %s", evt.RoundNumber, evt.RoundType)
		for _, member := range m.members {
			m.states[member] = MemberPending
		}
		m.activity = make(map[string][]string)

	case council.EventRoundComplete:
		m.rounds = append(m.rounds, fmt.Sprintf("Round %d — %s (%d responded)",
			evt.RoundNumber, evt.RoundType, len(evt.Responses)))
		m.currentRound = ""

	case council.EventModelStart:
		m.states[evt.Model] = MemberThinking
		m.startedAt[evt.Model] = time.Now()

	case council.EventModelComplete:
		m.states[evt.Model] = MemberDone
		if start, ok := m.startedAt[evt.Model]; ok {
			m.durations[evt.Model] = time.Since(start)
		}

	case council.EventModelError:
		m.states[evt.Model] = MemberFailed
		if start, ok := m.startedAt[evt.Model]; ok {
			m.durations[evt.Model] = time.Since(start)
		}
		m.appendActivity(evt.Model, "error: "+evt.Reason)

	case council.EventThought:
		m.appendActivity(evt.Model, "thought: "+activityPreview(evt.Content))

	case council.EventAction:
		m.appendActivity(evt.Model, fmt.Sprintf("action: %s(%s)", evt.Action, activityPreview(evt.Arg)))

	case council.EventObservation:
		m.appendActivity(evt.Model, "observation: "+activityPreview(evt.Content))

	case council.EventToolCall:
		m.appendActivity(evt.Model, "tool: "+evt.Tool)

	case council.EventToolResult:
		m.appendActivity(evt.Model, "tool: "+evt.Tool+" done")

	case council.EventToken:
		m.streamed += evt.Content

	case council.EventSynthesis:
		m.synthesis = evt.Content

	case council.EventDebateComplete:
		m.rounds = append(m.rounds, fmt.Sprintf("Debate complete — %d rounds", len(evt.Rounds)))

	case council.EventRankingComplete:
		if evt.Metadata != nil {
			for i, entry := range evt.Metadata.Aggregate {
				m.rounds = append(m.rounds, fmt.Sprintf("#%d %s (avg rank %.2f, %d votes)",
					i+1, entry.Model, entry.AverageRank, entry.VoteCount))
			}
		}
	}

	return m
}

// handleDone marks the run finished and writes the result to the channel.
func (m AppModel) handleDone(msg RunDoneMsg) (tea.Model, tea.Cmd) {
	m.done = true
	m.err = msg.Err
	if msg.Synthesis != "" {
		m.synthesis = msg.Synthesis
	}

	// Non-blocking write to result channel
	select {
	case m.resultCh <- msg:
	default:
	}

	return m, tea.Quit
}

// View implements tea.Model. Renders the inline deliberation display.
func (m AppModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("⚖ council — " + activityPreview(m.question)))
	b.WriteString("\n\n")

	for _, line := range m.rounds {
		b.WriteString(DoneStyle.Render("  ✓ " + line))
		b.WriteString("\n")
	}

	if m.currentRound != "" {
		b.WriteString(BannerStyle.Render("  " + m.currentRound))
		b.WriteString("\n")
		for _, member := range m.members {
			b.WriteString(m.renderMemberLine(member))
			b.WriteString("\n")
			if m.verbose {
				for _, line := range m.activity[member] {
					b.WriteString(ActivityStyle.Render("        " + line))
					b.WriteString("\n")
				}
			}
		}
	}

	b.WriteString("\n")

	switch {
	case m.synthesis != "":
		b.WriteString(SynthesisHeaderStyle.Render("  Synthesis"))
		b.WriteString("\n")
		b.WriteString(renderMarkdown(m.synthesis, m.width))
	case m.streamed != "":
		b.WriteString(BannerStyle.Render("  Chairman is synthesizing…"))
		b.WriteString("\n")
		b.WriteString(ActivityStyle.Render(streamTail(m.streamed, 3)))
		b.WriteString("\n")
	}

	b.WriteString(m.renderProgressLine())
	b.WriteString("\n")

	return b.String()
}

// renderMemberLine renders a single member's status row.
func (m AppModel) renderMemberLine(member string) string {
	state := m.states[member]
	switch state {
	case MemberThinking:
		return "    " + m.spinner.View() + ThinkingStyle.Render(member+"  thinking...")
	case MemberDone:
		return DoneStyle.Render(fmt.Sprintf("    ✓ %s  %s", member, formatDuration(m.durations[member])))
	case MemberFailed:
		return FailedStyle.Render(fmt.Sprintf("    ✗ %s  failed", member))
	default:
		return PendingStyle.Render("      " + member)
	}
}

// renderProgressLine renders the bottom elapsed/completion line.
func (m AppModel) renderProgressLine() string {
	elapsed := formatDuration(time.Since(m.start))
	if m.done {
		if m.err != nil {
			return FailedStyle.Render(fmt.Sprintf("  ✗ %s · FAILED: %v", elapsed, m.err))
		}
		return DoneStyle.Render(fmt.Sprintf("  ✓ done · %s", elapsed))
	}
	return PendingStyle.Render(fmt.Sprintf("  %s elapsed · q to quit", elapsed))
}

// appendActivity adds a verbose activity line for a member, keeping a bounded buffer.
func (m *AppModel) appendActivity(member, line string) {
	lines := m.activity[member]
	if len(lines) >= maxActivityLines {
		lines = lines[1:]
	}
	m.activity[member] = append(lines, line)
}

// renderMarkdown renders markdown for the terminal, falling back to the raw
// text when glamour cannot build a renderer for the environment.
func renderMarkdown(source string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return source + "\n"
	}
	out, err := r.Render(source)
	if err != nil {
		return source + "\n"
	}
	return out
}

// activityPreview truncates a string for single-line display.
func activityPreview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= activityPreviewLen {
		return s
	}
	return s[:activityPreviewLen] + "..."
}

// streamTail returns the last n lines of streamed text.
func streamTail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = "    " + activityPreview(line)
	}
	return strings.Join(lines, "\n")
}

// formatDuration formats a duration as a human-readable string like "0.1s" or "2m03s".
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 10 {
		return fmt.Sprintf("%.1fs", secs)
	}
	if secs < 60 {
		return fmt.Sprintf("%.0fs", secs)
	}
	mins := int(secs) / 60
	remainSecs := int(secs) % 60
	return fmt.Sprintf("%dm%02ds", mins, remainSecs)
}
