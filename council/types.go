// ABOUTME: Core data model for council deliberation: responses, rounds, rankings, and run results.
// ABOUTME: These types flow through the event stream and are what external stores persist.

package council

import (
	"github.com/2389-research/council/llm"
)

// RoundType identifies a debate phase.
type RoundType string

const (
	RoundInitial  RoundType = "initial"
	RoundCritique RoundType = "critique"
	RoundDefense  RoundType = "defense"
)

// ModelResponse is one participant's output for one round.
// RevisedAnswer is populated only for defense rounds and always falls back to
// the full content when the section cannot be parsed. Reasoned marks responses
// produced through the ReAct loop.
type ModelResponse struct {
	Model         string               `json:"model"`
	Response      string               `json:"response"`
	Reasoned      bool                 `json:"reasoned,omitempty"`
	RevisedAnswer string               `json:"revised_answer,omitempty"`
	ToolCallsMade []llm.ToolCallRecord `json:"tool_calls_made,omitempty"`
}

// Round is the record of one completed debate round. Responses preserve
// arrival order: completion order in the parallel executor, submission order
// in the streaming executor.
type Round struct {
	RoundNumber int             `json:"round_number"`
	RoundType   RoundType       `json:"round_type"`
	Responses   []ModelResponse `json:"responses"`
}

// RankingRecord is one participant's peer evaluation from the ranking
// pipeline: the full evaluation text plus the parsed label order.
type RankingRecord struct {
	Model         string   `json:"model"`
	Evaluation    string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// AggregateEntry is one model's aggregated peer-ranking score.
type AggregateEntry struct {
	Model       string  `json:"model"`
	AverageRank float64 `json:"average_rank"`
	VoteCount   int     `json:"vote_count"`
}

// RankingMetadata carries the label assignment and aggregate scores of a
// ranking run.
type RankingMetadata struct {
	LabelToModel map[string]string `json:"label_to_model"`
	Aggregate    []AggregateEntry  `json:"aggregate_rankings"`
}

// RankingOutcome is the terminal value of the ranking pipeline, before
// synthesis.
type RankingOutcome struct {
	Stage1   []ModelResponse `json:"stage1"`
	Stage2   []RankingRecord `json:"stage2"`
	Metadata RankingMetadata `json:"metadata"`
}

// DebateResult is the persisted shape of a completed debate run.
type DebateResult struct {
	Mode      string         `json:"mode"`
	Rounds    []Round        `json:"rounds"`
	Synthesis *ModelResponse `json:"synthesis,omitempty"`
}

// RankingResult is the persisted shape of a completed ranking run.
type RankingResult struct {
	Mode      string          `json:"mode"`
	Stage1    []ModelResponse `json:"stage1"`
	Stage2    []RankingRecord `json:"stage2"`
	Synthesis *ModelResponse  `json:"synthesis,omitempty"`
	Metadata  RankingMetadata `json:"metadata"`
}
