// Package export serializes evidence records for offline review.
//
// JSONExporter writes a JSON array and CSVExporter writes one row per record
// in Header order. Both accept either a slice (Export) or the channel returned
// by evidence.Storage.QueryStream (ExportStream), so large tables can be dumped
// without loading every dispatch into memory:
//
//	recs, errs, err := store.QueryStream(ctx, &evidence.Query{RoomID: room})
//	if err != nil {
//		return err
//	}
//	n, err := export.NewCSVExporter(true).ExportStream(ctx, recs, f)
//
// Request and response bodies are exported as stored, already truncated by
// the recorder.
package export
