package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"lycan-hq/arbiter/pkg/evidence"
)

// JSONExporter writes evidence as a single JSON array.
type JSONExporter struct {
	Pretty bool
}

func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w. A nil or empty slice produces "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	aw := e.array(w)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := aw.add(rec); err != nil {
			return err
		}
	}
	return aw.close()
}

// ExportStream drains recordsCh into w and returns the number of records
// written. It stops early when ctx is done.
func (e *JSONExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.Record, w io.Writer) (int, error) {
	aw := e.array(w)
	for {
		select {
		case <-ctx.Done():
			return aw.n, ctx.Err()
		case rec, ok := <-recordsCh:
			if !ok {
				return aw.n, aw.close()
			}
			if err := aw.add(rec); err != nil {
				return aw.n, err
			}
		}
	}
}

func (e *JSONExporter) array(w io.Writer) *arrayWriter {
	return &arrayWriter{w: w, pretty: e.Pretty}
}

// arrayWriter emits one array element at a time.
type arrayWriter struct {
	w      io.Writer
	pretty bool
	n      int
}

func (a *arrayWriter) add(rec *evidence.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return evidence.NewExportError("json", a.n, err)
	}
	if a.pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "  ", "  "); err != nil {
			return evidence.NewExportError("json", a.n, err)
		}
		data = buf.Bytes()
	}

	sep := ","
	switch {
	case a.n == 0 && a.pretty:
		sep = "[\n  "
	case a.n == 0:
		sep = "["
	case a.pretty:
		sep = ",\n  "
	}
	if _, err := io.WriteString(a.w, sep); err != nil {
		return evidence.NewExportError("json", a.n, err)
	}
	if _, err := a.w.Write(data); err != nil {
		return evidence.NewExportError("json", a.n, err)
	}
	a.n++
	return nil
}

func (a *arrayWriter) close() error {
	tail := "]"
	switch {
	case a.n == 0:
		tail = "[]"
	case a.pretty:
		tail = "\n]"
	}
	if _, err := io.WriteString(a.w, tail); err != nil {
		return evidence.NewExportError("json", a.n, err)
	}
	return nil
}
