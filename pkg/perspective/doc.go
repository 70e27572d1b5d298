// Package perspective derives what one seat may see of a game.
//
// Build is a pure function of a game.Snapshot and a viewer id. The View it
// returns carries the public board (living and dead seats, deaths this
// round, the public vote log), the viewer's own role briefing and remaining
// one-shot abilities, and the role-scoped extras:
//
//   - werewolves see their living teammates (never themselves)
//   - the witch sees the attack target, only during night_witch
//   - the seer sees its own inspection history
//   - the guard sees its previous protection target
//
// # Memory
//
// Memory lines are replayed from the audit log. Public entries are visible
// to everyone (judge narration only during day phases), team entries only to
// team-aware roles and private entries only to their actor. A role-dependent
// blocklist of sensitive markers then drops any line a role must not read,
// matching case-insensitively. Highlights fold the same lines into per-round
// summaries, most recent first.
package perspective
