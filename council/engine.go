// ABOUTME: Engine wires the gateway client, tool registry, and panel configuration together.
// ABOUTME: All deliberation entrypoints (debate, ranking, synthesis) hang off this type.

package council

import (
	"fmt"
	"time"

	"github.com/2389-research/council/llm"
	"github.com/2389-research/council/tools"
)

// DefaultModelTimeout bounds each participant's work in a single round.
const DefaultModelTimeout = 120 * time.Second

// DefaultMaxReactIterations caps reasoning steps in the ReAct loop.
const DefaultMaxReactIterations = 3

// DefaultTitleModel generates conversation titles; fast and cheap matters
// more than quality here.
const DefaultTitleModel = "google/gemini-2.5-flash"

// Engine orchestrates a fixed panel of models through a deliberation
// protocol. The participant set and chairman are fixed at construction; no
// state persists between runs.
type Engine struct {
	client       *llm.Client
	registry     *tools.Registry
	participants []string
	chairman     string
	titleModel   string
	useReact     bool
	modelTimeout time.Duration
	maxReactIter int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReact enables the text-based ReAct loop for tool-capable rounds.
func WithReact(enabled bool) EngineOption {
	return func(e *Engine) {
		e.useReact = enabled
	}
}

// WithModelTimeout overrides the default 120s per-participant timeout.
func WithModelTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.modelTimeout = timeout
	}
}

// WithMaxReactIterations overrides the default cap of 3 reasoning steps.
func WithMaxReactIterations(n int) EngineOption {
	return func(e *Engine) {
		e.maxReactIter = n
	}
}

// WithTitleModel overrides the model used for conversation titles.
func WithTitleModel(model string) EngineOption {
	return func(e *Engine) {
		e.titleModel = model
	}
}

// NewEngine creates a deliberation engine. At least two participants and a
// chairman are required; the chairman need not sit on the panel.
func NewEngine(client *llm.Client, registry *tools.Registry, participants []string, chairman string, opts ...EngineOption) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("engine requires a gateway client")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine requires a tool registry")
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("engine requires at least 2 participants, got %d", len(participants))
	}
	if chairman == "" {
		return nil, fmt.Errorf("engine requires a chairman model")
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p == "" {
			return nil, fmt.Errorf("participant ids must be non-empty")
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate participant: %s", p)
		}
		seen[p] = true
	}

	e := &Engine{
		client:       client,
		registry:     registry,
		participants: append([]string(nil), participants...),
		chairman:     chairman,
		titleModel:   DefaultTitleModel,
		modelTimeout: DefaultModelTimeout,
		maxReactIter: DefaultMaxReactIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Participants returns the panel in submission order.
func (e *Engine) Participants() []string {
	return append([]string(nil), e.participants...)
}

// Chairman returns the synthesis model.
func (e *Engine) Chairman() string {
	return e.chairman
}
