// Package dispatch asks seat backends for their decisions.
//
// # Overview
//
// Every seat is played by a remote backend registered in the Registry. The
// Dispatcher turns one Request (seat, phase, visible state) into one Result:
//
//  1. a seat whose circuit is open is answered by the fallback Policy
//  2. an admission slot is taken for the backend's provider key
//  3. POST {endpoint}/act is attempted with a transport budget strictly
//     larger than the api_timeout_sec sent to the backend
//  4. timeouts and 429/5xx answers are retried with exponential backoff
//  5. the answer is validated and its free text sanitized
//  6. a dispatch that ends without an answer counts towards the circuit
//     threshold and is answered by the fallback Policy
//
// # Provider Keys
//
// Backends sharing an upstream provider share an admission limiter:
//
//	cli                               any CLI-driven backend
//	api:<host>|model:<model name>     API backends
//	model:<model type>                everything else
//
// # Target Normalization
//
// NormalizeTarget maps a backend's free-form target ("vote for Alice",
// "p3", "【Bob】") to a living seat id and returns "" whenever the text is
// ambiguous.
//
// # Evidence
//
// When a Recorder is configured, every backend answer and every fallback is
// recorded with sanitized request and response payloads. With Config.Debug
// the visible state sent to each seat is recorded too.
package dispatch
