package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/records"
)

var recordsFlags struct {
	db     string
	winner string
	since  time.Duration
	limit  int
	format string
	audit  bool
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Browse finished games",
	Long: `List and inspect the games stored by "arbiter run".

Examples:
  # Games the wolves won in the last day
  arbiter records list --winner wolf --since 24h

  # Full record of one game, including the audit log
  arbiter records show 6f1c... --audit

  # Export a game as JSON
  arbiter records show 6f1c... -o json`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List finished games, newest first",
	Args:  cobra.NoArgs,
	RunE:  listRecords,
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <room-id>",
	Short: "Show one finished game",
	Args:  cobra.ExactArgs(1),
	RunE:  showRecord,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <room-id>",
	Short: "Delete one finished game",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRecord,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsDeleteCmd)

	recordsCmd.PersistentFlags().StringVar(&recordsFlags.db, "db", "", "records SQLite database (uses config if not specified)")
	recordsCmd.PersistentFlags().StringVarP(&recordsFlags.format, "output", "o", "text", "output format: text, json, csv")

	recordsListCmd.Flags().StringVar(&recordsFlags.winner, "winner", "", "filter by winning team (wolf, good)")
	recordsListCmd.Flags().DurationVar(&recordsFlags.since, "since", 0, "only games finished within this duration")
	recordsListCmd.Flags().IntVar(&recordsFlags.limit, "limit", records.DefaultListLimit, "max results")

	recordsShowCmd.Flags().BoolVar(&recordsFlags.audit, "audit", false, "include the audit log in text output")
}

// recordsPath resolves the database from --db, the config file, or the
// default path, in that order.
func recordsPath() string {
	if recordsFlags.db != "" {
		return recordsFlags.db
	}
	if cfg, err := config.LoadConfigWithEnvOverrides(cfgFile); err == nil && cfg.Records.Path != "" {
		return cfg.Records.Path
	}
	return config.DefaultRecordsPath
}

func openRecords(cmd *cobra.Command) (*records.SQLiteRepository, error) {
	repo, err := records.OpenSQLite(cmd.Context(), recordsPath())
	if err != nil {
		return nil, cli.NewCommandError(cmd.CommandPath(), err)
	}
	return repo, nil
}

func listRecords(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(recordsFlags.format)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	opts := records.ListOptions{Limit: recordsFlags.limit}
	switch w := game.Team(recordsFlags.winner); w {
	case game.TeamNone:
	case game.TeamWolf, game.TeamGood:
		opts.Winner = w
	default:
		return cli.NewConfigError("winner", fmt.Sprintf("unknown team %q (valid: wolf, good)", recordsFlags.winner))
	}
	if recordsFlags.since > 0 {
		opts.Since = time.Now().Add(-recordsFlags.since)
	}

	repo, err := openRecords(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	games, err := repo.List(cmd.Context(), opts)
	if err != nil {
		return cli.NewCommandError("records list", err)
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), games)
	}
	if format == cli.FormatText && len(games) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No games found.")
		return nil
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), gameTable(games))
}

func showRecord(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(recordsFlags.format)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	repo, err := openRecords(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	g, err := repo.Get(cmd.Context(), args[0])
	if errors.Is(err, records.ErrNotFound) {
		return cli.NewCommandError("records show", fmt.Errorf("no game with id %q", args[0]))
	}
	if err != nil {
		return cli.NewCommandError("records show", err)
	}

	out := cmd.OutOrStdout()
	if err := writeResult(out, format, g); err != nil {
		return err
	}
	if format == cli.FormatText && recordsFlags.audit {
		fmt.Fprintln(out)
		return writeAudit(out, g.Snapshot.Audit)
	}
	return nil
}

func deleteRecord(cmd *cobra.Command, args []string) error {
	repo, err := openRecords(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Delete(cmd.Context(), args[0]); err != nil {
		return cli.NewCommandError("records delete", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted game %s\n", args[0])
	return nil
}

// gameTable is the text view of listed games.
type gameTable []*records.Game

func (t gameTable) Header() []string {
	return []string{"ROOM", "FINISHED", "WINNER", "ROUNDS", "PHASES", "SEATS", "FALLBACKS", "DURATION"}
}

func (t gameTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, g := range t {
		winner := string(g.Winner)
		if !g.Over {
			winner = "-"
		}
		rows = append(rows, []string{
			g.ID,
			g.FinishedAt.Format(time.RFC3339),
			winner,
			strconv.Itoa(g.Rounds),
			strconv.Itoa(g.Steps),
			strconv.Itoa(g.PlayerCount),
			strconv.FormatInt(g.Fallbacks, 10),
			g.Duration().Round(time.Second).String(),
		})
	}
	return rows
}

type auditTable []game.AuditEntry

func (t auditTable) Header() []string {
	return []string{"SEQ", "ROUND", "PHASE", "EVENT", "ACTOR", "TARGET", "VISIBILITY", "TEXT"}
}

func (t auditTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			strconv.Itoa(e.Seq),
			strconv.Itoa(e.Round),
			string(e.Phase),
			string(e.Kind),
			e.Actor,
			e.Target,
			string(e.Visibility),
			e.Text,
		})
	}
	return rows
}

func writeAudit(w io.Writer, entries []game.AuditEntry) error {
	return (&cli.TextFormatter{}).FormatTo(w, auditTable(entries))
}
