package perspective

import (
	"fmt"
	"slices"
	"strings"

	"lycan-hq/arbiter/pkg/game"
)

// Sensitive markers. A candidate memory line containing one of these
// (case-insensitive) is dropped unless the viewer's role is allowed to see
// that marker class.
var (
	teamMarkers = []string{
		"tonight's target", "attack target", "wolf team", "wolf teammate", "proposed attacking",
		"今晚目标", "刀口", "狼队", "狼人讨论",
	}
	inspectMarkers = []string{
		"inspection result", "seer result", "inspected",
		"查验", "验人", "金水", "查杀",
	}
	credentialMarkers = []string{"api_key", "api-key", "password", "secret", "bearer "}
)

// Blocklist returns the markers that must not appear in memory lines shown
// to role. Wolves may see team coordination, the seer may see inspection
// markers, nobody sees credentials.
func Blocklist(role game.Role) []string {
	blocked := slices.Clone(credentialMarkers)
	switch role {
	case game.RoleWerewolf:
		return append(blocked, inspectMarkers...)
	case game.RoleSeer:
		return append(blocked, teamMarkers...)
	}
	blocked = append(blocked, teamMarkers...)
	return append(blocked, inspectMarkers...)
}

// Blocked reports whether line contains a marker blocked for role.
func Blocked(role game.Role, line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range Blocklist(role) {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type memoryLine struct {
	round int
	text  string
}

// Digest replays the audit log into the memory lines viewer may see,
// keeping at most limit of the most recent lines.
func Digest(snap game.Snapshot, viewer game.Seat, limit int) []string {
	lines := memoryLines(snap, viewer)
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = fmt.Sprintf("[R%d] %s", l.round, l.text)
	}
	return out
}

// Highlights groups the viewer's memory into per-round summaries. Rounds
// and lines are most recent first, duplicate lines are dropped and both
// dimensions are capped.
func Highlights(snap game.Snapshot, viewer game.Seat, rounds, perRound int) []RoundHighlight {
	lines := memoryLines(snap, viewer)

	var out []RoundHighlight
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if len(out) == 0 || out[len(out)-1].Round != l.round {
			if len(out) == rounds {
				break
			}
			out = append(out, RoundHighlight{Round: l.round})
		}
		h := &out[len(out)-1]
		if len(h.Lines) >= perRound || slices.Contains(h.Lines, l.text) {
			continue
		}
		h.Lines = append(h.Lines, l.text)
	}
	if out == nil {
		out = []RoundHighlight{}
	}
	return out
}

func memoryLines(snap game.Snapshot, viewer game.Seat) []memoryLine {
	var lines []memoryLine
	for _, entry := range snap.Audit {
		if !visibleTo(entry, viewer) {
			continue
		}
		text := describe(snap, entry)
		if text == "" || Blocked(viewer.Role, text) {
			continue
		}
		lines = append(lines, memoryLine{round: entry.Round, text: text})
	}
	return lines
}

func visibleTo(entry game.AuditEntry, viewer game.Seat) bool {
	switch entry.Visibility {
	case game.VisibilityPublic:
		if entry.Kind == game.EventNarration {
			return entry.Phase.IsDay()
		}
		return true
	case game.VisibilityTeam:
		return viewer.Role.TeamAware()
	case game.VisibilityPrivate:
		return entry.Actor == viewer.ID
	}
	return false
}

func describe(snap game.Snapshot, entry game.AuditEntry) string {
	name := snap.NameOf
	switch entry.Kind {
	case game.EventDeath:
		return fmt.Sprintf("%s died (%s)", name(entry.Target), entry.Fields["cause"])
	case game.EventVoteResult:
		switch entry.Fields["result"] {
		case "exile":
			return fmt.Sprintf("%s was exiled by vote", name(entry.Target))
		case "tie_no_exile":
			return "the vote tied and nobody was exiled"
		case "fool_revealed":
			return fmt.Sprintf("%s revealed as the fool and survived the vote", name(entry.Target))
		case "no_votes":
			return "no valid votes were cast"
		}
	case game.EventRetaliation:
		if entry.Target == "" {
			return fmt.Sprintf("%s declined to shoot", name(entry.Actor))
		}
		return fmt.Sprintf("%s shot %s", name(entry.Actor), name(entry.Target))
	case game.EventNarration:
		if entry.Text == "" {
			return ""
		}
		return "Judge: " + entry.Text
	case game.EventSpeech:
		if entry.Text == "" {
			return ""
		}
		return fmt.Sprintf("%s said: %s", name(entry.Actor), entry.Text)
	case game.EventGameOver:
		return entry.Text
	case game.EventNightAction:
		return describeNightAction(snap, entry)
	}
	return ""
}

func describeNightAction(snap game.Snapshot, entry game.AuditEntry) string {
	name := snap.NameOf
	if entry.Actor == "system" {
		return fmt.Sprintf("tonight's target is %s", name(entry.Target))
	}
	switch game.Role(entry.Fields["role"]) {
	case game.RoleWerewolf:
		return fmt.Sprintf("%s proposed attacking %s", name(entry.Actor), name(entry.Target))
	case game.RoleGuard:
		return fmt.Sprintf("you protected %s", name(entry.Target))
	case game.RoleWitch:
		var parts []string
		if entry.Fields["save"] == "true" {
			parts = append(parts, "you used the antidote")
		}
		if entry.Target != "" {
			parts = append(parts, fmt.Sprintf("you poisoned %s", name(entry.Target)))
		}
		return strings.Join(parts, "; ")
	case game.RoleSeer:
		target, ok := snap.Seat(entry.Target)
		if !ok {
			return ""
		}
		verdict := "good"
		if target.Role == game.RoleWerewolf {
			verdict = "wolf"
		}
		return fmt.Sprintf("inspection result: %s is %s", target.DisplayName(), verdict)
	}
	return ""
}
