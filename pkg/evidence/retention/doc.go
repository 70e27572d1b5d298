// Package retention prunes old dispatch evidence.
//
// Two limits apply, either of which may be disabled with 0:
//
//   - RetentionDays deletes records older than the cutoff
//   - MaxRecords deletes the oldest records beyond the cap
//
// Each limit is a pass that finds a cutoff time and deletes everything
// recorded up to it. With ArchiveBeforeDelete set, a pass first writes its
// records as JSON to ArchivePath/evidence-<pass>-<timestamp>.json.
//
// # Scheduling
//
// Start registers Prune with robfig/cron using PruneSchedule ("0 3 * * *"
// runs daily at 3 AM). An empty schedule makes Start a no-op. Stop waits for
// a running prune to finish. "arbiter evidence prune" calls Prune once.
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 30,
//	    PruneSchedule: "0 3 * * *",
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pruner.Stop()
package retention
