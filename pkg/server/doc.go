// Package server runs the HTTP endpoints arbiter exposes next to a game:
// the telemetry listener of "arbiter run" and the seat backend of
// "arbiter agent serve".
//
// A Server owns one http.Server with the standard middleware chain applied
// around the caller's handler, outermost first:
//
//   - Recovery turns handler panics into a 500 JSON error
//   - RequestID assigns X-Request-ID, keeping a caller supplied one
//   - Logging writes one structured line per request
//
// # Lifecycle
//
// Start serves on a listener in the background; Serve blocks until its
// context is done. Both end in Shutdown, which drains in-flight requests
// for at most Config.ShutdownTimeout and may be called any number of times.
//
//	srv := server.New("telemetry", mux, server.Config{})
//	if err := srv.Start(ln); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
package server
