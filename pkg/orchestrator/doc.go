// Package orchestrator drives a game from start to game over.
//
// # Overview
//
// An Orchestrator reads the engine's phase, builds each acting seat's view,
// dispatches the seat through the dispatch layer, normalizes the answer and
// submits it to the engine, then advances the phase. It is the only writer
// of the engine.
//
// Two implementations share the same phase flows:
//
//   - RuleBased: seat backends only
//   - Judge: adds a judge backend (see package providers) that narrates each
//     phase; narration is parsed leniently and replaced by fixed text when
//     it is missing or leaks results
//
// # Phase Flows
//
//	night_wolf     multi-round wolf discussion (package consensus), then every
//	               wolf's declaration is forced to the agreed target
//	night_guard    one dispatch; an unusable target is replaced at random,
//	               a rejected one is retried once
//	night_seer     same as the guard, never inspecting itself
//	night_witch    one dispatch; the answer's save flag and poison target
//	               are submitted together or dropped
//	day_announce   the judge settles the night deterministically
//	day_discuss    living seats speak in seat id order, each seeing the
//	               statements before it; only the seer may claim results
//	day_vote       concurrent dispatches, submissions serialized
//
// A dead hunter with a pending shot is dispatched as hunter_shot right after
// the phase that killed it.
//
// Every dispatch that opens a seat's circuit marks the seat entrusted.
package orchestrator
