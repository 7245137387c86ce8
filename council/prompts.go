// ABOUTME: Prompt builders for every deliberation phase.
// ABOUTME: All builders are pure string functions; the only ambient input is the calendar date.

package council

import (
	"fmt"
	"strings"
	"time"
)

// DateContext returns the current-date preamble prepended to time-sensitive
// prompts so models orient their searches correctly.
func DateContext() string {
	return DateContextAt(time.Now())
}

// DateContextAt is DateContext for a fixed instant.
func DateContextAt(t time.Time) string {
	return fmt.Sprintf("Today's date is %s.\n\n", t.Format("January 2, 2006"))
}

// BuildInitialPrompt builds the first-round prompt: the user's question with
// the date preamble.
func BuildInitialPrompt(userQuery string) string {
	return DateContext() + userQuery
}

// BuildRankingPrompt builds the peer-ranking prompt over anonymized responses.
func BuildRankingPrompt(userQuery, responsesText string) string {
	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText)
}

// BuildTitlePrompt builds the conversation-title generation prompt.
func BuildTitlePrompt(userQuery string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)
}

// BuildCritiquePrompt builds the critique-round prompt for one participant.
// The participant is named so it knows to skip critiquing itself.
func BuildCritiquePrompt(userQuery, responsesText, model string) string {
	return DateContext() + fmt.Sprintf(`You are participating in a multi-model debate on the following question:

**Question:** %s

Here are the initial responses from all participating models:

%s

Your task is to critically evaluate the OTHER models' responses (not your own). For each model except yourself, provide a thorough critique that:
- Identifies strengths and what they got right
- Points out weaknesses, errors, or gaps in reasoning
- Challenges any questionable assumptions
- Notes missing information or perspectives

Your own response is from **%s** - do NOT critique yourself.

Format your response as follows:

## Critique of [Model Name]
[Your critique]

## Critique of [Model Name]
[Your critique]

(Continue for each model except yourself)`, userQuery, responsesText, model)
}

// BuildDefensePrompt builds the defense-round prompt: the date preamble plus
// the defense body.
func BuildDefensePrompt(userQuery, originalResponse, critiquesForMe string) string {
	return DateContext() + BuildDefenseBody(userQuery, originalResponse, critiquesForMe)
}

// BuildDefenseBody is the defense prompt without the date preamble, for
// embedding inside the ReAct wrapper (which carries its own date).
func BuildDefenseBody(userQuery, originalResponse, critiquesForMe string) string {
	return fmt.Sprintf(`You are participating in a multi-model debate on the following question:

**Question:** %s

**Your original response:**
%s

**Critiques of your response from other models:**
%s

Your task is to:
1. Address the specific criticisms raised against your response
2. Defend points where you believe you were correct
3. Acknowledge valid criticisms and incorporate them
4. Provide a REVISED response that improves upon your original

Format your response as follows:

## Addressing Critiques
[Address each major criticism, explaining where you stand firm and where you concede]

## Revised Response
[Your updated, improved answer to the original question]`, userQuery, originalResponse, critiquesForMe)
}

// WrapReactPrompt wraps any prompt body in the Thought/Action/Observation
// protocol with search_web and respond() as the available actions. The wrapper
// carries its own date preamble, so the body must not.
func WrapReactPrompt(body string) string {
	return DateContext() + fmt.Sprintf(`You are answering a question using ReAct (Reasoning + Acting).

You have access to the following tool:
- search_web(query): Search the web to verify facts or get current information

When you have enough information, call respond() to produce your final answer.

IMPORTANT FORMAT - You MUST respond in this exact format:

Thought: <your reasoning about what you know and what you need>
Action: <either search_web("query") or respond()>

If you call search_web, you will receive an Observation with the results, then continue reasoning.
If you call respond(), write your final answer after it.

Maximum 3 reasoning steps allowed. If unsure, respond with available information.

%s

Begin your reasoning:`, body)
}

// BuildReflectionPrompt builds the chairman's reflection-then-synthesis
// prompt. No tools are offered; the chairman reasons over existing content.
func BuildReflectionPrompt(context string) string {
	return DateContext() + fmt.Sprintf("You are the Chairman of an LLM Council. Your role is to deeply analyse the responses provided by the council models and produce a single, comprehensive, accurate final answer.\n\nBefore writing your final answer, reflect on the following:\n1. **Areas of agreement** - Where do the models converge? Shared conclusions are likely reliable.\n2. **Areas of disagreement** - Where do they diverge? Evaluate which side presents stronger evidence or reasoning.\n3. **Factual claims that warrant scrutiny** - Note any claims that seem uncertain, contradictory, or surprising.\n4. **Quality differences** - Which responses are most thorough, well-reasoned, and supported?\n\nAfter your analysis, provide your final answer under a `## Synthesis` header.\n\n%s\n\nBegin your analysis:", context)
}

// BuildRankingContext formats ranking-mode results as chairman context.
func BuildRankingContext(userQuery string, stage1 []ModelResponse, stage2 []RankingRecord) string {
	stage1Parts := make([]string, 0, len(stage1))
	for _, result := range stage1 {
		stage1Parts = append(stage1Parts, fmt.Sprintf("Model: %s\nResponse: %s", result.Model, result.Response))
	}

	stage2Parts := make([]string, 0, len(stage2))
	for _, result := range stage2 {
		stage2Parts = append(stage2Parts, fmt.Sprintf("Model: %s\nRanking: %s", result.Model, result.Evaluation))
	}

	return fmt.Sprintf(`Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s`, userQuery, strings.Join(stage1Parts, "\n\n"), strings.Join(stage2Parts, "\n\n"))
}

// BuildDebateContext formats a full debate transcript as chairman context.
func BuildDebateContext(userQuery string, rounds []Round) string {
	banner := strings.Repeat("=", 60)
	var transcript []string

	for _, round := range rounds {
		transcript = append(transcript, "\n"+banner)
		transcript = append(transcript, fmt.Sprintf("ROUND %d: %s", round.RoundNumber, strings.ToUpper(string(round.RoundType))))
		transcript = append(transcript, banner)
		for _, response := range round.Responses {
			transcript = append(transcript, fmt.Sprintf("\n**%s:**\n%s", response.Model, response.Response))
		}
	}

	return fmt.Sprintf(`Original Question: %s

The debate consisted of %d rounds:
1. **Initial Responses**: Each model provided their initial answer
2. **Critiques**: Each model critically evaluated the other models' responses
3. **Defense/Revision**: Each model addressed critiques and revised their answer

DEBATE TRANSCRIPT:
%s`, userQuery, len(rounds), strings.Join(transcript, "\n"))
}

// FormatResponsesForCritique renders attributed responses for the critique
// round prompt.
func FormatResponsesForCritique(responses []ModelResponse) string {
	parts := make([]string, 0, len(responses))
	for _, result := range responses {
		parts = append(parts, fmt.Sprintf("**%s:**\n%s", result.Model, result.Response))
	}
	return strings.Join(parts, "\n\n")
}
