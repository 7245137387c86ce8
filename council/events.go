// ABOUTME: Typed event stream emitted by debate and ranking runs.
// ABOUTME: Events are the engine's only output channel; presenters and stores consume them.

package council

// EventType discriminates deliberation events.
type EventType string

const (
	EventRoundStart      EventType = "round_start"
	EventRoundComplete   EventType = "round_complete"
	EventModelStart      EventType = "model_start"
	EventModelComplete   EventType = "model_complete"
	EventModelError      EventType = "model_error"
	EventToken           EventType = "token"
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventThought         EventType = "thought"
	EventAction          EventType = "action"
	EventObservation     EventType = "observation"
	EventReflection      EventType = "reflection"
	EventSynthesis       EventType = "synthesis"
	EventDebateComplete  EventType = "debate_complete"
	EventRankingComplete EventType = "ranking_complete"
	EventError           EventType = "error"
)

// Event is one deliberation event. Type determines which fields are set; all
// payload fields are omitted from JSON when empty so serialized events stay
// small for SSE and store consumers.
type Event struct {
	Type EventType `json:"type"`

	// Round events.
	RoundNumber int             `json:"round_number,omitempty"`
	RoundType   RoundType       `json:"round_type,omitempty"`
	Responses   []ModelResponse `json:"responses,omitempty"`

	// Per-model events.
	Model    string         `json:"model,omitempty"`
	Response *ModelResponse `json:"response,omitempty"`
	Reason   string         `json:"reason,omitempty"`

	// Token and ReAct events. Content carries token deltas, thoughts,
	// observations, reflection text, and synthesis text.
	Content string `json:"content,omitempty"`
	Action  string `json:"action,omitempty"`
	Arg     string `json:"arg,omitempty"`

	// Tool events.
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result string         `json:"result,omitempty"`

	// Terminal events.
	Rounds   []Round          `json:"rounds,omitempty"`
	Stage1   []ModelResponse  `json:"stage1,omitempty"`
	Stage2   []RankingRecord  `json:"stage2,omitempty"`
	Metadata *RankingMetadata `json:"metadata,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// EmitFunc delivers one event to the consumer. It returns false when the
// consumer has gone away; producers stop promptly on false.
type EmitFunc func(Event) bool
