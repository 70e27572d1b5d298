package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lycan-hq/arbiter/pkg/evidence"
)

// Config is evidence.recorder from the game configuration.
type Config struct {
	Enabled bool

	// AsyncBuffer is how many records may wait for the writer. Default 1000.
	AsyncBuffer int

	// WriteTimeout bounds both a blocked Record call and each store write.
	// Default 5s.
	WriteTimeout time.Duration

	// HashPayloads fills RequestHash and ResponseHash from the full
	// payloads, before MaxFieldLength cuts them.
	HashPayloads bool

	// MaxFieldLength caps the stored request and response. Zero keeps them
	// whole.
	MaxFieldLength int
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		HashPayloads:   true,
		MaxFieldLength: 1000,
	}
}

// Stats counts what happened to the records handed to Record.
type Stats struct {
	Written int64
	Failed  int64
	Dropped int64
}

// Recorder keeps the dispatch trail of a game. Record only queues; a single
// writer goroutine moves records into storage, so a slow store costs a seat
// nothing until the queue fills.
//
// # Thread Safety
//
// Record and Close may be called from any goroutine. After Close returns
// every accepted record has been written or counted as failed.
type Recorder struct {
	storage evidence.Storage
	config  Config
	logger  *slog.Logger

	// mu guards closed and the close of queue against in-flight sends.
	mu     sync.RWMutex
	closed bool
	queue  chan *evidence.Record
	done   chan struct{}

	written, failed, dropped atomic.Int64
}

func NewRecorder(storage evidence.Storage, config *Config) *Recorder {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage: storage,
		config:  cfg,
		logger:  slog.Default().With("component", "evidence.recorder"),
		queue:   make(chan *evidence.Record, cfg.AsyncBuffer),
		done:    make(chan struct{}),
	}
	go r.write()

	r.logger.Debug("evidence recorder started",
		"buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
		"hash_payloads", cfg.HashPayloads)
	return r
}

// Record stamps rec and queues it. When the queue is full it waits up to
// WriteTimeout, then drops rec with a RecorderError wrapping
// context.DeadlineExceeded. After Close the error wraps context.Canceled.
func (r *Recorder) Record(ctx context.Context, rec *evidence.Record) error {
	if !r.config.Enabled || rec == nil {
		return nil
	}
	r.stamp(rec)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return evidence.NewRecorderError(rec, context.Canceled)
	}

	select {
	case r.queue <- rec:
		return nil
	default:
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()
	select {
	case r.queue <- rec:
		return nil
	case <-timer.C:
		r.dropped.Add(1)
		r.logger.WarnContext(ctx, "evidence queue full, record dropped",
			"event", rec.Event, "capacity", cap(r.queue))
		return evidence.NewRecorderError(rec, context.DeadlineExceeded)
	case <-ctx.Done():
		r.dropped.Add(1)
		return evidence.NewRecorderError(rec, ctx.Err())
	}
}

// Close stops accepting records and waits for the queue to drain. Calling
// it again is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	s := r.Stats()
	r.logger.Info("evidence recorder closed",
		"written", s.Written, "failed", s.Failed, "dropped", s.Dropped)
	return nil
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Written: r.written.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
	}
}

// stamp fills the id and time and replaces the payloads with their hashed,
// truncated form.
func (r *Recorder) stamp(rec *evidence.Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedTime.IsZero() {
		rec.RecordedTime = time.Now()
	}
	if r.config.HashPayloads {
		rec.RequestHash = HashPayload(rec.Request)
		rec.ResponseHash = HashPayload(rec.Response)
	}
	if n := r.config.MaxFieldLength; n > 0 {
		rec.Request = TruncateString(rec.Request, n)
		rec.Response = TruncateString(rec.Response, n)
	}
}

func (r *Recorder) write() {
	defer close(r.done)
	slow := r.config.WriteTimeout / 2

	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		start := time.Now()
		err := r.storage.Store(ctx, rec)
		cancel()
		took := time.Since(start)

		log := r.logger.With("room", rec.RoomID, "round", rec.Round, "seat", rec.SeatID, "event", rec.Event)
		switch {
		case err != nil:
			r.failed.Add(1)
			log.Error("evidence write failed", "error", err)
		case took > slow:
			r.written.Add(1)
			log.Warn("slow evidence write", "took", took, "threshold", slow)
		default:
			r.written.Add(1)
		}
	}
}
