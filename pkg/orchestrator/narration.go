package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/providers"
)

// MaxNarration caps narration taken verbatim from a non-JSON answer.
const MaxNarration = 500

var (
	fencedJSON     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	structuredLeak = regexp.MustCompile(`"(?:narration|phase_instructions|rulings)"\s*:`)

	voteResultClaim  = regexp.MustCompile(`(?i)投票结果|平票|放逐|得票|票型统计|vote results?|tied vote|\bexiled\b|vote tally`)
	nightResultClaim = regexp.MustCompile(`(?i)昨晚|昨夜|平安夜|死亡|倒牌|被(?:刀|毒|杀)|last night|peaceful night|\bdied\b|was killed|was poisoned`)

	// nightSecretClaim covers night actions the day announcement does not
	// reveal.
	nightSecretClaim = regexp.MustCompile(`(?i)\b(?:protected|guarded|inspected|checked|saved|antidote)\b|attack target|守护|查验|验了|解药|救了|刀口`)
	roleWord         = regexp.MustCompile(`(?i)\b(?:seer|witch|guard|hunter|werewol(?:f|ves)|wol(?:f|ves)|villagers?|fool)\b|预言家|女巫|守卫|猎人|狼人|村民|白痴`)
	sentenceBreak    = regexp.MustCompile(`[.!?;。！？；\n]+`)
)

var fallbackNarration = map[game.Phase]string{
	game.PhaseNightWolf:      "Night falls. Werewolves, open your eyes and choose your target.",
	game.PhaseNightGuard:     "Guard, open your eyes and choose whom to protect tonight.",
	game.PhaseNightWitch:     "Witch, open your eyes. Will you use your potions tonight?",
	game.PhaseNightSeer:      "Seer, open your eyes and choose whom to inspect.",
	game.PhaseDayAnnounce:    "Dawn breaks. Everyone, open your eyes.",
	game.PhaseDayDiscuss:     "The discussion begins. Speak in turn.",
	game.PhaseDayVote:        "The discussion is over. Cast your votes.",
	dispatch.PhaseHunterShot: "The hunter may take a final shot.",
}

// FallbackNarration is the fixed narration used when the judge backend
// cannot produce one.
func FallbackNarration(phase game.Phase) string {
	if text, ok := fallbackNarration[phase]; ok {
		return text
	}
	return "Please continue."
}

// ParseNarration decodes a judge answer: a fenced JSON block, else the
// outermost brace block, else the text itself as the narration.
func ParseNarration(text string) map[string]any {
	text = strings.TrimSpace(text)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if obj, ok := providers.ParseObject([]byte(m[1])); ok {
			return obj
		}
	}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		if obj, ok := providers.ParseObject([]byte(text[i : j+1])); ok {
			return obj
		}
	}
	return map[string]any{"narration": truncateRunes(text, MaxNarration)}
}

// CoerceNarration extracts the narration string of a parsed answer. A
// narration that is itself JSON is unwrapped up to three times. Text that
// still looks like a structured answer is replaced by the fallback.
func CoerceNarration(obj map[string]any, phase game.Phase) string {
	text, _ := obj["narration"].(string)
	for range 3 {
		t := strings.TrimSpace(text)
		if !strings.HasPrefix(t, "{") {
			break
		}
		inner, ok := providers.ParseObject([]byte(t))
		if !ok {
			break
		}
		s, ok := inner["narration"].(string)
		if !ok {
			break
		}
		text = s
	}
	text = strings.TrimSpace(text)
	if text == "" || structuredLeak.MatchString(text) {
		return FallbackNarration(phase)
	}
	return text
}

// SanitizeNarration replaces day narration that leaks hidden information
// with instruction. In both day phases a sentence may not pair a seat with a
// role and no night action beyond the announced deaths may be mentioned;
// day-vote narration may also not claim vote or night results. Other phases
// are returned unchanged.
func SanitizeNarration(snap game.Snapshot, phase game.Phase, text, instruction string) string {
	var leak bool
	switch phase {
	case game.PhaseDayDiscuss:
		leak = namesRole(snap, text) || nightSecretClaim.MatchString(text)
	case game.PhaseDayVote:
		leak = namesRole(snap, text) || nightSecretClaim.MatchString(text) ||
			voteResultClaim.MatchString(text) || nightResultClaim.MatchString(text)
	default:
		return text
	}
	if !leak {
		return text
	}
	if instruction == "" {
		return FallbackNarration(phase)
	}
	return instruction
}

// namesRole reports whether a sentence of text mentions both a seat and a
// role.
func namesRole(snap game.Snapshot, text string) bool {
	for _, sentence := range sentenceBreak.Split(text, -1) {
		if !roleWord.MatchString(sentence) {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, seat := range snap.Seats {
			if strings.Contains(lower, strings.ToLower(seat.ID)) ||
				(seat.Name != "" && strings.Contains(lower, strings.ToLower(seat.Name))) {
				return true
			}
		}
	}
	return false
}

var causeLabels = map[game.DeathCause]string{
	game.CauseWolf:   "wolf attack",
	game.CausePoison: "poison",
	game.CauseVote:   "vote",
	game.CauseHunter: "hunter shot",
}

// Settlement summarizes the night for day_announce. public lists the deaths
// only; settlement adds the guard, attack and poison outcomes for the judge
// record.
func Settlement(snap game.Snapshot) (public, settlement string) {
	night := snap.Round.Night
	name := snap.NameOf

	var deaths []string
	for _, s := range snap.Seats {
		if cause, ok := snap.Round.Deaths[s.ID]; ok {
			deaths = append(deaths, fmt.Sprintf("%s (%s)", s.DisplayName(), causeLabels[cause]))
		}
	}
	if len(deaths) == 0 {
		public = "Last night was peaceful. Nobody died."
	} else {
		public = "Last night these players died: " + strings.Join(deaths, ", ") + "."
	}

	var lines []string
	if night.GuardTarget != "" {
		lines = append(lines, fmt.Sprintf("The guard protected %s.", name(night.GuardTarget)))
	} else {
		lines = append(lines, "Nobody was protected.")
	}
	if t := snap.Round.WolfTarget; t != "" {
		var outcome string
		switch {
		case snap.Round.Deaths[t] != "":
			outcome = "who died"
		case snap.Round.Protected[t]:
			outcome = "who was protected"
		case night.WitchSave:
			outcome = "who was saved by the witch"
		default:
			outcome = "with no effect"
		}
		lines = append(lines, fmt.Sprintf("The wolves attacked %s, %s.", name(t), outcome))
	} else {
		lines = append(lines, "The wolves attacked nobody.")
	}
	if night.WitchPoison != "" {
		lines = append(lines, fmt.Sprintf("The witch poisoned %s.", name(night.WitchPoison)))
	}
	lines = append(lines, public)
	return public, strings.Join(lines, " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
