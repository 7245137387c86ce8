// ABOUTME: Total parsers for model output: rankings, revised answers, critiques, reflection, ReAct.
// ABOUTME: Every parser has a documented fallback and never returns an error.

package council

import (
	"regexp"
	"strings"
)

var (
	finalRankingRe    = regexp.MustCompile(`(?i)FINAL RANKING:`)
	numberedLabelRe   = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	responseLabelRe   = regexp.MustCompile(`Response [A-Z]`)
	revisedAnswerRe   = regexp.MustCompile(`(?is)##\s*Revised Response\s*\n(.*)`)
	synthesisSplitRe  = regexp.MustCompile(`(?i)##\s*Synthesis\s*\n`)
	critiqueHeaderRe  = regexp.MustCompile(`(?i)##\s*Critique of[^\n]*\n`)
	anyHeaderRe       = regexp.MustCompile(`##[^\n]*\n`)
	reactThoughtRe    = regexp.MustCompile(`(?is)Thought:\s*(.+?)(\n\s*Action:|$)`)
	reactActionRe     = regexp.MustCompile(`(?i)Action:\s*(\w+)\s*\(([^)]*)\)`)
	afterRespondRe    = regexp.MustCompile(`(?is)Action:\s*respond\s*\(\s*\)\s*\n*(.*)`)
	afterSynthesizeRe = regexp.MustCompile(`(?is)Action:\s*synthesize\s*\(\s*\)\s*\n*(.*)`)
)

// ParseRankingFromText extracts the ordered response labels from a peer
// evaluation. Primary path reads the numbered list after "FINAL RANKING:";
// fallbacks scan for "Response X" mentions, deduplicated preserving first
// occurrence.
func ParseRankingFromText(text string) []string {
	if loc := finalRankingRe.FindStringIndex(text); loc != nil {
		section := text[loc[1]:]

		if numbered := numberedLabelRe.FindAllString(section, -1); len(numbered) > 0 {
			labels := make([]string, 0, len(numbered))
			for _, m := range numbered {
				labels = append(labels, responseLabelRe.FindString(m))
			}
			return dedupeLabels(labels)
		}

		if matches := responseLabelRe.FindAllString(section, -1); matches != nil {
			return dedupeLabels(matches)
		}
	}

	return dedupeLabels(responseLabelRe.FindAllString(text, -1))
}

func dedupeLabels(labels []string) []string {
	if labels == nil {
		return nil
	}
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

// ParseRevisedAnswer extracts the "## Revised Response" section from a
// defense. Fallback: the full defense text, so the revised answer is never
// empty when the defense is not.
func ParseRevisedAnswer(defense string) string {
	if m := revisedAnswerRe.FindStringSubmatch(defense); m != nil {
		return strings.TrimSpace(m[1])
	}
	return defense
}

// ExtractCritiquesForModel collects critique sections directed at the target
// participant from all critique responses, with source attribution headers.
// Matching tolerates provider prefixes: only the final path segment of the
// target id is matched, case-insensitively.
func ExtractCritiquesForModel(targetModel string, critiqueResponses []ModelResponse) string {
	parts := strings.Split(targetModel, "/")
	targetName := strings.ToLower(parts[len(parts)-1])

	var critiques []string
	for _, response := range critiqueResponses {
		if response.Model == targetModel {
			continue
		}

		section := critiqueSection(response.Response, targetName, critiqueHeaderRe)
		if section == "" {
			section = critiqueSection(response.Response, targetName, anyHeaderRe)
		}
		if section != "" {
			critiques = append(critiques, "**From "+response.Model+":**\n"+section)
		}
	}

	if len(critiques) == 0 {
		return "(No specific critiques were extracted for this model)"
	}
	return strings.Join(critiques, "\n\n")
}

// critiqueSection returns the first section whose header mentions targetName,
// running from the end of that header to the next header or end of content.
func critiqueSection(content, targetName string, headerRe *regexp.Regexp) string {
	locs := headerRe.FindAllStringIndex(content, -1)
	for i, loc := range locs {
		header := strings.ToLower(content[loc[0]:loc[1]])
		if !strings.Contains(header, targetName) {
			continue
		}
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		return strings.TrimSpace(content[loc[1]:end])
	}
	return ""
}

// ParseReflectionOutput splits chairman output at the "## Synthesis" header.
// When the header is absent, the whole text is the synthesis and the
// reflection is empty.
func ParseReflectionOutput(text string) (reflection, synthesis string) {
	if loc := synthesisSplitRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[:loc[0]]), strings.TrimSpace(text[loc[1]:])
	}
	return "", text
}

// ReAct action names recognized by ParseReactOutput.
const (
	ActionSearchWeb  = "search_web"
	ActionRespond    = "respond"
	ActionSynthesize = "synthesize"
)

// ParseReactOutput extracts the first Thought and Action from ReAct-format
// output. Action is empty when no recognized action is present. The arg is
// populated only for search_web, with surrounding quotes stripped.
func ParseReactOutput(text string) (thought, action, arg string) {
	if m := reactThoughtRe.FindStringSubmatch(text); m != nil {
		thought = strings.TrimSpace(m[1])
	}

	if m := reactActionRe.FindStringSubmatch(text); m != nil {
		name := strings.ToLower(m[1])
		switch name {
		case ActionSearchWeb:
			action = ActionSearchWeb
			arg = strings.Trim(strings.TrimSpace(m[2]), `"'`)
		case ActionRespond, ActionSynthesize:
			action = name
		}
	}

	return thought, action, arg
}

// ExtractFinalAnswer returns the text after a terminal "Action: respond()" or
// "Action: synthesize()" line. Fallback: the full content.
func ExtractFinalAnswer(text, action string) string {
	re := afterRespondRe
	if action == ActionSynthesize {
		re = afterSynthesizeRe
	}
	if m := re.FindStringSubmatch(text); m != nil {
		if answer := strings.TrimSpace(m[1]); answer != "" {
			return answer
		}
	}
	return strings.TrimSpace(text)
}
