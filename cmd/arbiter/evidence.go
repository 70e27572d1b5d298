package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/evidence/export"
	"lycan-hq/arbiter/pkg/evidence/query"
	"lycan-hq/arbiter/pkg/evidence/retention"
)

var evidenceFlags struct {
	db         string
	timeRange  string
	room       string
	seat       string
	phase      string
	event      string
	status     string
	provider   string
	minLatency time.Duration
	limit      int
	offset     int
	sortBy     string
	sortOrder  string
	format     string
	out        string

	days       int
	maxRecords int64
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query dispatch evidence",
	Long: `Query, export and prune the evidence recorded for every dispatch.

Each dispatch to a seat leaves one record: the sanitized request and
response, their hashes, the number of attempts and, for fallback actions,
the reason the backend was bypassed.

Subcommands:
  query   - Query evidence records with filters
  prune   - Apply the retention policy once

Examples:
  # Fallbacks of one room
  arbiter evidence query --room 6f1c... --status fallback

  # Export a time range as CSV
  arbiter evidence query --time-range "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z" -o csv --out evidence.csv`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evidence records",
	Long: `Query evidence records with filters.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z"

Examples:
  # Slow dispatches of seat p3
  arbiter evidence query --seat p3 --min-latency 5s --sort-by latency

  # Everything in one phase as JSON
  arbiter evidence query --phase day_vote -o json`,
	RunE: queryEvidence,
}

var evidencePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete evidence past its retention",
	Long: `Delete evidence older than the retention period and trim the store to
the configured maximum record count. Flags override the configured values.`,
	RunE: pruneEvidence,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd, evidencePruneCmd)

	evidenceCmd.PersistentFlags().StringVar(&evidenceFlags.db, "db", "", "evidence SQLite database (uses config if not specified)")

	f := evidenceQueryCmd.Flags()
	f.StringVar(&evidenceFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	f.StringVar(&evidenceFlags.room, "room", "", "filter by room id")
	f.StringVar(&evidenceFlags.seat, "seat", "", "filter by seat id")
	f.StringVar(&evidenceFlags.phase, "phase", "", "filter by phase")
	f.StringVar(&evidenceFlags.event, "event", "", "filter by event (agent_response, fallback_action, god_visible_state)")
	f.StringVar(&evidenceFlags.status, "status", "", "filter by status (success, fallback, debug)")
	f.StringVar(&evidenceFlags.provider, "provider", "", "filter by provider key")
	f.DurationVar(&evidenceFlags.minLatency, "min-latency", 0, "minimum dispatch latency")
	f.IntVar(&evidenceFlags.limit, "limit", query.DefaultLimit, "max results")
	f.IntVar(&evidenceFlags.offset, "offset", 0, "pagination offset")
	f.StringVar(&evidenceFlags.sortBy, "sort-by", "", "sort field: recorded_time, latency, round")
	f.StringVar(&evidenceFlags.sortOrder, "sort-order", "", "sort order: asc, desc")
	f.StringVarP(&evidenceFlags.format, "output", "o", "text", "output format: text, json, csv")
	f.StringVar(&evidenceFlags.out, "out", "", "output file (default: stdout)")

	evidencePruneCmd.Flags().IntVar(&evidenceFlags.days, "days", 0, "override retention days")
	evidencePruneCmd.Flags().Int64Var(&evidenceFlags.maxRecords, "max-records", 0, "override the maximum record count")
}

// evidenceConfig returns the evidence section of the config file, or an
// SQLite section for --db.
func evidenceConfig() (config.EvidenceConfig, error) {
	if evidenceFlags.db != "" {
		return config.EvidenceConfig{
			Backend: "sqlite",
			SQLite: config.SQLiteConfig{
				Path:         evidenceFlags.db,
				MaxOpenConns: config.DefaultEvidenceSQLiteMaxOpenConns,
				MaxIdleConns: config.DefaultEvidenceSQLiteMaxIdleConns,
				BusyTimeout:  config.DefaultEvidenceSQLiteBusyTimeout,
			},
			Retention: config.RetentionConfig{Days: config.DefaultEvidenceRetentionDays},
		}, nil
	}
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return config.EvidenceConfig{}, err
	}
	return cfg.Evidence, nil
}

func buildEvidenceQuery() (*evidence.Query, error) {
	q := &evidence.Query{
		RoomID:      evidenceFlags.room,
		SeatID:      evidenceFlags.seat,
		Phase:       evidenceFlags.phase,
		Event:       evidence.Event(evidenceFlags.event),
		Status:      evidenceFlags.status,
		ProviderKey: evidenceFlags.provider,
		Limit:       evidenceFlags.limit,
		Offset:      evidenceFlags.offset,
		SortBy:      evidenceFlags.sortBy,
		SortOrder:   evidenceFlags.sortOrder,
	}
	if evidenceFlags.minLatency > 0 {
		d := evidenceFlags.minLatency
		q.MinLatency = &d
	}
	if evidenceFlags.timeRange != "" {
		start, end, err := parseTimeRange(evidenceFlags.timeRange)
		if err != nil {
			return nil, cli.NewConfigError("time-range", err.Error())
		}
		q.StartTime, q.EndTime = &start, &end
	}

	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

// parseTimeRange parses an RFC3339 interval "start/end".
func parseTimeRange(s string) (time.Time, time.Time, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range format (expected: start/end)")
	}
	start, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}
	return start, end, nil
}

func queryEvidence(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(evidenceFlags.format)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	q, err := buildEvidenceQuery()
	if err != nil {
		return err
	}

	ecfg, err := evidenceConfig()
	if err != nil {
		printConfigErrors(cmd.ErrOrStderr(), err)
		return err
	}
	store, err := openEvidence(ecfg)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	defer store.Close()

	if evidenceFlags.out != "" && format != cli.FormatText {
		file, err := os.Create(evidenceFlags.out)
		if err != nil {
			return cli.NewCommandError("evidence query", fmt.Errorf("failed to create output file: %w", err))
		}
		defer file.Close()
		n, err := streamEvidence(cmd.Context(), store, q, format, file)
		if err != nil {
			return cli.NewCommandError("evidence query", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d records to %s\n", n, evidenceFlags.out)
		return nil
	}

	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("evidence query", fmt.Errorf("query failed: %w", err))
	}

	var w io.Writer = cmd.OutOrStdout()
	if evidenceFlags.out != "" {
		file, err := os.Create(evidenceFlags.out)
		if err != nil {
			return cli.NewCommandError("evidence query", fmt.Errorf("failed to create output file: %w", err))
		}
		defer file.Close()
		w = file
	}

	if err := writeEvidence(cmd, w, format, recs); err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	if evidenceFlags.out != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d records to %s\n", len(recs), evidenceFlags.out)
	}
	return nil
}

func writeEvidence(cmd *cobra.Command, w io.Writer, format cli.OutputFormat, recs []*evidence.Record) error {
	switch format {
	case cli.FormatJSON:
		return export.NewJSONExporter(true).Export(cmd.Context(), recs, w)
	case cli.FormatCSV:
		return export.NewCSVExporter(true).Export(cmd.Context(), recs, w)
	default:
		if len(recs) == 0 {
			_, err := fmt.Fprintln(w, "No evidence records found.")
			return err
		}
		return cli.NewFormatter(format).FormatTo(w, evidenceTable(recs))
	}
}

// streamEvidence exports the records matched by q to w without loading
// them all at once.
func streamEvidence(ctx context.Context, store evidence.Storage, q *evidence.Query, format cli.OutputFormat, w io.Writer) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recs, errs, err := store.QueryStream(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}

	var n int
	if format == cli.FormatCSV {
		n, err = export.NewCSVExporter(true).ExportStream(ctx, recs, w)
	} else {
		n, err = export.NewJSONExporter(true).ExportStream(ctx, recs, w)
	}
	if err != nil {
		return n, err
	}
	if err := <-errs; err != nil {
		return n, fmt.Errorf("query failed: %w", err)
	}
	return n, nil
}

// evidenceTable is the text view of evidence records.
type evidenceTable []*evidence.Record

func (t evidenceTable) Header() []string {
	return []string{"TIME", "ROOM", "ROUND", "PHASE", "SEAT", "STATUS", "ATTEMPTS", "LATENCY", "REASON"}
}

func (t evidenceTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.RecordedTime.Format(time.RFC3339),
			shortID(r.RoomID),
			strconv.Itoa(r.Round),
			r.Phase,
			r.SeatID,
			r.Status,
			strconv.Itoa(r.Attempts),
			r.Latency.Round(time.Millisecond).String(),
			r.FallbackReason,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func pruneEvidence(cmd *cobra.Command, args []string) error {
	ecfg, err := evidenceConfig()
	if err != nil {
		printConfigErrors(cmd.ErrOrStderr(), err)
		return err
	}
	store, err := openEvidence(ecfg)
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}
	defer store.Close()

	rcfg := retentionConfig(ecfg.Retention)
	if evidenceFlags.days > 0 {
		rcfg.RetentionDays = evidenceFlags.days
	}
	if evidenceFlags.maxRecords > 0 {
		rcfg.MaxRecords = evidenceFlags.maxRecords
	}
	rcfg.PruneSchedule = ""

	deleted, err := retention.NewPruner(store, rcfg).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d evidence records\n", deleted)
	return nil
}
