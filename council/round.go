// ABOUTME: Per-round-type configuration and its single factory.
// ABOUTME: Executors consume RoundConfig so neither re-implements round-type dispatch.

package council

import (
	"fmt"
)

// RoundContext carries the prior-round material a round's prompts are built
// from. Initial rounds take no context; critique rounds take the responses
// under critique; defense rounds additionally take the critiques.
type RoundContext struct {
	InitialResponses  []ModelResponse
	CritiqueResponses []ModelResponse
}

// RoundConfig captures the per-round-type differences: tool access, ReAct
// use, revised-answer parsing, and prompt construction.
type RoundConfig struct {
	Type             RoundType
	UsesTools        bool
	UsesReact        bool
	HasRevisedAnswer bool
	BuildPrompt      func(model string) string
}

// BuildRoundConfig is the single point of round-type dispatch. ReAct applies
// only to tool-capable rounds (initial and defense); critique rounds never
// use tools or ReAct.
func BuildRoundConfig(roundType RoundType, userQuery string, rctx RoundContext, reactEnabled bool) (RoundConfig, error) {
	switch roundType {
	case RoundInitial:
		prompt := BuildInitialPrompt(userQuery)
		if reactEnabled {
			prompt = WrapReactPrompt(userQuery)
		}
		return RoundConfig{
			Type:      RoundInitial,
			UsesTools: true,
			UsesReact: reactEnabled,
			BuildPrompt: func(_ string) string {
				return prompt
			},
		}, nil

	case RoundCritique:
		responsesText := FormatResponsesForCritique(rctx.InitialResponses)
		return RoundConfig{
			Type: RoundCritique,
			BuildPrompt: func(model string) string {
				return BuildCritiquePrompt(userQuery, responsesText, model)
			},
		}, nil

	case RoundDefense:
		modelToResponse := make(map[string]string, len(rctx.InitialResponses))
		for _, r := range rctx.InitialResponses {
			modelToResponse[r.Model] = r.Response
		}
		critiqueResponses := rctx.CritiqueResponses
		return RoundConfig{
			Type:             RoundDefense,
			UsesTools:        true,
			UsesReact:        reactEnabled,
			HasRevisedAnswer: true,
			BuildPrompt: func(model string) string {
				original := modelToResponse[model]
				critiques := ExtractCritiquesForModel(model, critiqueResponses)
				if reactEnabled {
					return WrapReactPrompt(BuildDefenseBody(userQuery, original, critiques))
				}
				return BuildDefensePrompt(userQuery, original, critiques)
			},
		}, nil
	}

	return RoundConfig{}, fmt.Errorf("unknown round type: %s", roundType)
}
