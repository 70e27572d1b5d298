package orchestrator

import (
	"regexp"
	"strings"

	"lycan-hq/arbiter/pkg/dispatch"
)

// DefaultSpeech is spoken for a seat that said nothing.
const DefaultSpeech = "I'll listen first."

var (
	speechPrefixes   = []string{"speech:", "speech：", "发言:", "发言："}
	thinkingPrefixes = []string{"thinking:", "thinking：", "思考:", "思考：", "[private]", "(private)", "内心:", "内心："}

	sentence = regexp.MustCompile(`[^.!?。！？\n]+[.!?。！？]*`)

	// inspectionClaim matches statements that only the seer can make
	// truthfully.
	inspectionClaim = regexp.MustCompile(`(?i)\b(?:is|are)\s+(?:a\s+|the\s+)?(?:were)?wol(?:f|ves)\b|\b(?:checked|inspected|verified)\b.*\b(?:wolf|werewolf|good|villager|innocent)\b|查杀|金水|验(?:了|出|人)|是狼|是好人`)
)

// splitSpeech separates a result's public speech from its private thinking.
// Without a speech field, "speech:" lines of the reasoning are used; without
// a thinking field, "thinking:" lines and private-marked lines are.
func splitSpeech(res dispatch.Result) (speech, thinking string) {
	speech = strings.TrimSpace(res.Speech)
	thinking = strings.TrimSpace(res.Thinking)

	var spoken, private []string
	for _, line := range strings.Split(res.Reasoning, "\n") {
		row := strings.TrimSpace(line)
		if rest, ok := cutPrefixFold(row, speechPrefixes); ok {
			spoken = append(spoken, rest)
			continue
		}
		if rest, ok := cutPrefixFold(row, thinkingPrefixes); ok {
			private = append(private, rest)
		}
	}
	if speech == "" {
		speech = strings.TrimSpace(strings.Join(spoken, " "))
	}
	if thinking == "" {
		thinking = strings.TrimSpace(strings.Join(private, " "))
	}
	return speech, thinking
}

func cutPrefixFold(s string, prefixes []string) (string, bool) {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):]), true
		}
	}
	return "", false
}

// scrubClaims drops the sentences of text that claim inspection results.
func scrubClaims(text string) string {
	var kept []string
	for _, s := range sentence.FindAllString(text, -1) {
		if inspectionClaim.MatchString(s) {
			continue
		}
		if t := strings.TrimSpace(s); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}
