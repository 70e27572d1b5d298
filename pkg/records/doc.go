// Package records persists finished games for replay.
//
// A Game holds the final snapshot of a room, including its audit log and
// vote log, together with the run summary. The SQLite repository keeps one
// row per room id; saving the same room again replaces it.
//
//	repo, err := records.OpenSQLite(ctx, cfg.Records.Path)
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//
//	err = repo.Save(ctx, records.NewGame(eng.Snapshot(), started, time.Now()))
//	game, err := repo.Get(ctx, roomID)
package records
