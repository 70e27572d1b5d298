package dispatch

import (
	"regexp"
	"slices"
	"strings"

	"lycan-hq/arbiter/pkg/game"
)

var (
	targetKeyword = regexp.MustCompile(`(?i)(?:目标(?:为|是)?|刀(?:掉)?|击杀|袭击|投(?:票)?给|守护|查验|毒(?:杀)?|开枪(?:带走)?|\b(?:target(?:\s+is)?|kill|attack|vote(?:\s+for)?|protect|guard|inspect|check|poison|shoot))\s*[:：]?\s*([A-Za-z0-9_\-\p{Han}]{1,20})`)
	compactStrip  = regexp.MustCompile(`[\s\[\]【】()（）{}<>《》'"“”‘’` + "`" + `~!！?？,，.。:：;；、\\/|·_\-]+`)
)

// TargetOptions restricts which seats a normalized target may resolve to.
type TargetOptions struct {
	// ExcludeWolves rejects werewolf seats
	ExcludeWolves bool
}

// NormalizeTarget resolves a backend's free-form target to a living seat id.
//
// Keyword-anchored tokens ("vote for X", "目标 X") are tried first, then the
// whole text. Each candidate token is matched against, in order: exact id,
// exact name, case-insensitive name, id or name mentions, and compact
// containment with whitespace and punctuation stripped. Every step requires
// a unique match; ambiguity returns "" instead of guessing.
func NormalizeTarget(snap game.Snapshot, raw string, opts TargetOptions) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	resolved := ""
	for _, m := range targetKeyword.FindAllStringSubmatch(raw, -1) {
		if id := resolveToken(snap.Seats, m[1]); id != "" {
			resolved = id
			break
		}
	}
	if resolved == "" {
		resolved = resolveToken(snap.Seats, raw)
	}
	if resolved == "" {
		return ""
	}

	seat, ok := snap.Seat(resolved)
	if !ok || !seat.Alive {
		return ""
	}
	if opts.ExcludeWolves && seat.Role == game.RoleWerewolf {
		return ""
	}
	return resolved
}

func resolveToken(seats []game.Seat, token string) string {
	probe := strings.TrimSpace(token)
	if probe == "" {
		return ""
	}
	for _, s := range seats {
		if s.ID == probe {
			return s.ID
		}
	}

	if id, done := unique(seats, func(s game.Seat) bool {
		return strings.TrimSpace(s.Name) == probe
	}); done {
		return id
	}

	lowered := strings.ToLower(probe)
	if id, done := unique(seats, func(s game.Seat) bool {
		return strings.ToLower(strings.TrimSpace(s.Name)) == lowered
	}); done {
		return id
	}

	if id, done := unique(seats, func(s game.Seat) bool {
		name := strings.TrimSpace(s.Name)
		return strings.Contains(probe, s.ID) || (name != "" && strings.Contains(probe, name))
	}); done {
		return id
	}

	cp := compact(probe)
	if cp == "" {
		return ""
	}
	id, _ := unique(seats, func(s game.Seat) bool {
		cn := compact(s.Name)
		if cn == "" {
			return false
		}
		if cp == cn {
			return true
		}
		return len([]rune(cp)) >= 2 && len([]rune(cn)) >= 2 &&
			(strings.Contains(cn, cp) || strings.Contains(cp, cn))
	})
	return id
}

// unique returns the single seat matching keep. done is false when nothing
// matched, so the caller may try the next rule; an ambiguous match is done
// with an empty id.
func unique(seats []game.Seat, keep func(game.Seat) bool) (id string, done bool) {
	var hits []string
	for _, s := range seats {
		if keep(s) {
			hits = append(hits, s.ID)
		}
	}
	if len(hits) == 0 {
		return "", false
	}
	slices.Sort(hits)
	hits = slices.Compact(hits)
	if len(hits) == 1 {
		return hits[0], true
	}
	return "", true
}

func compact(text string) string {
	return strings.ToLower(compactStrip.ReplaceAllString(text, ""))
}
