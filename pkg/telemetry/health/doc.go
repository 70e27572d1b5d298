// Package health reports whether the seats of a room can be played.
//
// A Checker holds named checks. RegisterSeats adds one check per seat,
// backed by the dispatcher's probe: a seat is ready when its backend answers
// the health request and its circuit is closed. Before the first night the
// CLI calls WaitReady so a game never starts with an unreachable seat, and
// the same checks are served over HTTP:
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 503 while any seat check fails
//   - /version: build information
//
// Example:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterSeats(dispatcher, seatIDs)
//	checker.OnResult(func(name string, ok bool) {
//	    if id, isSeat := health.SeatID(name); isSeat {
//	        collector.UpdateSeatHealth(id, ok)
//	    }
//	})
//	status, err := checker.WaitReady(ctx, cfg.Telemetry.Health.PollInterval)
package health
