package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"lycan-hq/arbiter/pkg/evidence"
)

// flushEvery bounds how many streamed rows are buffered before a flush.
const flushEvery = 100

// Header is the CSV column order.
var Header = []string{
	"id", "room_id", "round", "phase", "seat_id", "role",
	"event", "status", "fallback_reason", "error_type", "attempts", "latency_ms",
	"provider_key", "model",
	"request", "response", "request_hash", "response_hash",
	"recorded_time",
}

// CSVExporter writes one row per evidence record.
type CSVExporter struct {
	IncludeHeader bool
}

func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	cw, err := e.begin(w)
	if err != nil {
		return err
	}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(row(rec)); err != nil {
			return evidence.NewExportError("csv", i, err)
		}
	}
	return finish(cw, len(records))
}

// ExportStream drains recordsCh into w and returns the number of rows
// written, not counting the header.
func (e *CSVExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.Record, w io.Writer) (int, error) {
	cw, err := e.begin(w)
	if err != nil {
		return 0, err
	}
	defer cw.Flush()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case rec, ok := <-recordsCh:
			if !ok {
				return n, finish(cw, n)
			}
			if err := cw.Write(row(rec)); err != nil {
				return n, evidence.NewExportError("csv", n, err)
			}
			n++
			if n%flushEvery == 0 {
				if err := finish(cw, n); err != nil {
					return n, err
				}
			}
		}
	}
}

func (e *CSVExporter) begin(w io.Writer) (*csv.Writer, error) {
	cw := csv.NewWriter(w)
	if e.IncludeHeader {
		if err := cw.Write(Header); err != nil {
			return nil, evidence.NewExportError("csv", 0, err)
		}
	}
	return cw, nil
}

func finish(cw *csv.Writer, n int) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return evidence.NewExportError("csv", n, err)
	}
	return nil
}

func row(r *evidence.Record) []string {
	var recorded string
	if !r.RecordedTime.IsZero() {
		recorded = r.RecordedTime.Format(time.RFC3339Nano)
	}
	return []string{
		r.ID, r.RoomID, strconv.Itoa(r.Round), r.Phase, r.SeatID, r.Role,
		string(r.Event), r.Status, r.FallbackReason, r.ErrorType,
		strconv.Itoa(r.Attempts), strconv.FormatInt(r.Latency.Milliseconds(), 10),
		r.ProviderKey, r.Model,
		r.Request, r.Response, r.RequestHash, r.ResponseHash,
		recorded,
	}
}
