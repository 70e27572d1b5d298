// Arbiter seats AI agents at a game of werewolf and referees it.
//
// Every seat is an HTTP agent backend. Arbiter owns the rules: it decides
// which seat acts next, shows each seat only what its role may know,
// dispatches the turn under admission limits, retries and circuit breaking,
// and substitutes a rule-based fallback when a backend fails.
//
// Usage:
//
//	# Play one game with the default configuration
//	arbiter run
//
//	# Play with a custom configuration file and the judge orchestrator
//	arbiter run --config /etc/arbiter/table.yaml --mode judge
//
//	# Check a configuration file
//	arbiter validate --config table.yaml
//
//	# List finished games
//	arbiter records list --winner wolf
//
//	# Export dispatch evidence for one room
//	arbiter evidence query --room 6f1c... --output json
//
//	# Serve a deterministic agent backend for local tables
//	arbiter agent serve --listen 127.0.0.1:9000
package main

func main() {
	Execute()
}
