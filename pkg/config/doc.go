// Package config loads, validates and hot-reloads the arbiter configuration.
//
// A configuration describes one table: the game (player count, role
// distribution, night order, house rules), the seats and their agent
// backends, and the tuning of dispatch, consensus, the orchestrator and the
// observability stack.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("arbiter.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("arbiter.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention ARBITER_SECTION_FIELD:
//
//   - ARBITER_GAME_PLAYER_COUNT overrides game.player_count
//   - ARBITER_ORCHESTRATOR_JUDGE_API_KEY overrides orchestrator.judge.api_key
//   - ARBITER_SEATS_P1_API_KEY overrides the api_key of seat "p1"
//
// # Role Templates
//
// Tables of 8 to 12 players use a built-in role template unless
// game.distribution is set. A distribution that differs from the template
// needs game.admin_override. Every distribution must sum to the player
// count, include at least one werewolf, keep the wolf share between 15%
// and 40% and the special roles at or below half the table.
//
// # Hot Reload
//
// FileWatcher reloads the file after edits settle and reports the seats
// that were added or changed, so a crashed backend can be replaced during
// a game by editing its seat entry.
//
// # Example Configuration
//
//	game:
//	  player_count: 8
//	seats:
//	  - id: p1
//	    name: Alice
//	    endpoint: http://127.0.0.1:9001
//	    model_type: gpt
//	  # ... one entry per seat
//	orchestrator:
//	  mode: judge
//	  judge:
//	    provider: openai
//	    api_url: https://api.openai.com/v1
//	    model_name: gpt-4o-mini
//
// # Thread Safety
//
// Current, Publish and Reload are safe for concurrent use. A Config value itself
// is not synchronized and must not be mutated after it is shared.
package config
