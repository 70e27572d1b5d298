package evidence

import "fmt"

// StorageError is a failed operation of a storage backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // "store", "query", "delete", ...
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("evidence %s backend: %s: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// NewStorageError wraps cause.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// QueryError rejects a query before it reaches storage.
type QueryError struct {
	Query *Query
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid evidence query: %v", e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// NewQueryError wraps cause.
func NewQueryError(query *Query, cause error) *QueryError {
	return &QueryError{Query: query, Cause: cause}
}

// RecorderError reports the evidence of one dispatch that was not recorded.
// The dispatch itself is unaffected.
type RecorderError struct {
	RecordID string
	RoomID   string
	SeatID   string
	Cause    error
}

func (e *RecorderError) Error() string {
	if e.SeatID == "" {
		return fmt.Sprintf("evidence %s not recorded: %v", e.RecordID, e.Cause)
	}
	return fmt.Sprintf("evidence %s for seat %s in room %s not recorded: %v", e.RecordID, e.SeatID, e.RoomID, e.Cause)
}

func (e *RecorderError) Unwrap() error { return e.Cause }

// NewRecorderError wraps cause for rec.
func NewRecorderError(rec *Record, cause error) *RecorderError {
	return &RecorderError{RecordID: rec.ID, RoomID: rec.RoomID, SeatID: rec.SeatID, Cause: cause}
}

// RetentionError is a failed prune run.
type RetentionError struct {
	RetentionDays int
	Cause         error
}

func (e *RetentionError) Error() string {
	return fmt.Sprintf("evidence retention (%d days): %v", e.RetentionDays, e.Cause)
}

func (e *RetentionError) Unwrap() error { return e.Cause }

// NewRetentionError wraps cause.
func NewRetentionError(retentionDays int, cause error) *RetentionError {
	return &RetentionError{RetentionDays: retentionDays, Cause: cause}
}

// ExportError is a failed export.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("exporting %d evidence records as %s: %v", e.RecordCount, e.Format, e.Cause)
}

func (e *ExportError) Unwrap() error { return e.Cause }

// NewExportError wraps cause.
func NewExportError(format string, recordCount int, cause error) *ExportError {
	return &ExportError{Format: format, RecordCount: recordCount, Cause: cause}
}
