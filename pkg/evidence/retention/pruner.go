package retention

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/evidence/export"
)

// Config is the retention policy.
type Config struct {
	// RetentionDays keeps evidence for this many days. 0 keeps it forever.
	RetentionDays int

	// PruneSchedule is a standard cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning.
	PruneSchedule string

	// ArchiveBeforeDelete writes doomed records as JSON to ArchivePath.
	ArchiveBeforeDelete bool
	ArchivePath         string

	// MaxRecords caps the store. 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig keeps 30 days and prunes daily at 3 AM.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner applies a retention policy to an evidence store, on demand or on
// a cron schedule.
//
// # Thread Safety
//
// Prune may run concurrently with Start and Stop; cron skips a tick while
// the previous prune is still running.
type Pruner struct {
	storage evidence.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner. A nil config means DefaultConfig.
func NewPruner(storage evidence.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "evidence.retention"),
		now:     time.Now,
	}
}

// pass is one pruning rule: it returns the newest recorded time to delete,
// or ok=false when nothing has to go.
type pass struct {
	name   string
	cutoff func(ctx context.Context) (cutoff time.Time, ok bool, err error)
}

// Prune deletes expired records first, then the oldest records beyond
// MaxRecords, and returns how many were deleted in total.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var passes []pass
	if p.config.RetentionDays > 0 {
		passes = append(passes, pass{name: "age", cutoff: p.ageCutoff})
	}
	if p.config.MaxRecords > 0 {
		passes = append(passes, pass{name: "count", cutoff: p.countCutoff})
	}

	var total int64
	for _, ps := range passes {
		cutoff, ok, err := ps.cutoff(ctx)
		if err != nil {
			return total, evidence.NewRetentionError(p.config.RetentionDays, fmt.Errorf("%s pass: %w", ps.name, err))
		}
		if !ok {
			continue
		}
		deleted, err := p.deleteThrough(ctx, ps.name, cutoff)
		if err != nil {
			return total, evidence.NewRetentionError(p.config.RetentionDays, fmt.Errorf("%s pass: %w", ps.name, err))
		}
		total += deleted
		p.logger.Debug("retention pass done", "pass", ps.name, "deleted", deleted, "cutoff", cutoff)
	}

	if total > 0 {
		p.logger.Info("evidence pruned",
			"deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}

func (p *Pruner) ageCutoff(context.Context) (time.Time, bool, error) {
	return p.now().AddDate(0, 0, -p.config.RetentionDays), true, nil
}

// countCutoff is the recorded time of the newest record that has to go to
// bring the store down to MaxRecords. Records sharing that timestamp go
// together, so the store may end slightly below the cap.
func (p *Pruner) countCutoff(ctx context.Context) (time.Time, bool, error) {
	count, err := p.storage.Count(ctx, &evidence.Query{})
	if err != nil {
		return time.Time{}, false, err
	}
	excess := count - p.config.MaxRecords
	if excess <= 0 {
		return time.Time{}, false, nil
	}
	oldest, err := p.storage.Query(ctx, &evidence.Query{
		SortBy:    "recorded_time",
		SortOrder: "asc",
		Limit:     int(excess),
	})
	if err != nil || len(oldest) == 0 {
		return time.Time{}, false, err
	}
	return oldest[len(oldest)-1].RecordedTime, true, nil
}

// deleteThrough archives, if configured, and deletes every record up to
// cutoff.
func (p *Pruner) deleteThrough(ctx context.Context, name string, cutoff time.Time) (int64, error) {
	q := &evidence.Query{EndTime: &cutoff}
	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, name, q); err != nil {
			return 0, err
		}
	}
	return p.storage.Delete(ctx, q)
}

// archive writes the records matched by q to
// ArchivePath/evidence-<pass>-<timestamp>.json.
func (p *Pruner) archive(ctx context.Context, name string, q *evidence.Query) error {
	all := *q
	all.Limit = math.MaxInt32
	all.SortBy, all.SortOrder = "recorded_time", "asc"
	recs, err := p.storage.Query(ctx, &all)
	if err != nil {
		return fmt.Errorf("failed to read records for archiving: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	path := filepath.Join(p.config.ArchivePath, fmt.Sprintf("evidence-%s-%s.json", name, p.now().Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, recs, f); err != nil {
		return err
	}
	p.logger.Info("evidence archived", "file", path, "records", len(recs))
	return nil
}

// Start schedules Prune on PruneSchedule until ctx is done or Stop is
// called. An empty schedule is a no-op.
func (p *Pruner) Start(ctx context.Context) error {
	schedule := p.config.PruneSchedule
	if schedule == "" {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { p.scheduledPrune(ctx) }); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pruner already started")
	}
	p.cron = c
	p.running = true
	p.mu.Unlock()

	c.Start()
	p.logger.Info("evidence pruning scheduled",
		"schedule", schedule,
		"retention_days", p.config.RetentionDays,
		"max_records", p.config.MaxRecords,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

func (p *Pruner) scheduledPrune(ctx context.Context) {
	start := time.Now()
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	p.logger.Debug("scheduled pruning finished", "deleted", deleted, "duration_ms", time.Since(start).Milliseconds())
}

// Stop ends scheduling and waits for a running prune.
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	running := p.running
	p.running = false
	p.mu.Unlock()

	if running {
		<-c.Stop().Done()
	}
}

// Scheduled reports whether scheduled pruning is active.
func (p *Pruner) Scheduled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextPruning returns the next scheduled run, or nil when not scheduled.
func (p *Pruner) NextPruning() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
