// Package game implements the werewolf rule engine.
//
// # Overview
//
// An Engine owns the authoritative state of one game: seats, roles, the
// current phase and the per-round context. It validates every declared
// action against the role rules, resolves nights and day votes, and checks
// the win condition after every death.
//
// # Phase Machine
//
//	prepare -> night sub-phases (in configured order, filtered to present roles)
//	        -> day_announce -> day_discuss -> day_vote -> next round ...
//	any death may end the game -> game_over
//
// # Skill Resolvers
//
// Night skills (attack, protect, save/poison, inspect) are selected by a
// switch over the closed Role set. Each resolver validates first and only
// then applies, so a rejected declaration never leaves partial state.
//
// # Randomness
//
// All random choices use an injected *rand.Rand. Seed derives reproducible
// seeds from (room, round, phase) for callers that need stable shuffles.
//
// # Example
//
//	setup, _ := game.Template(8)
//	e, _ := game.NewEngine("room-1", "p1", setup)
//	for i := 1; i <= 8; i++ {
//	    e.AddSeat(fmt.Sprintf("p%d", i), fmt.Sprintf("Cat %d", i))
//	}
//	e.Start("p1")
//	for !e.Over() {
//	    e.TimeoutAutorun()
//	}
package game
