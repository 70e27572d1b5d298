// Package agenttest provides a scripted seat backend for tests and for the
// "arbiter agent serve" command.
//
// An Agent serves POST /act and GET /health. Each /act call is answered by a
// Script; Deterministic always picks the first legal candidate of the
// visible state, which makes complete games reproducible:
//
//	srv := agenttest.NewServer(agenttest.Sequence(
//	    agenttest.Status(503),
//	    agenttest.Target("vote", "p2"),
//	))
//	defer srv.Close()
//
// SetResponse serves fixed replies on other paths, which the judge client
// tests use for /chat/completions and /messages.
package agenttest
