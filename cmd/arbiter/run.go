package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/records"
	"lycan-hq/arbiter/pkg/telemetry/logging"
)

var runFlags struct {
	roomID       string
	mode         string
	maxSteps     int
	logLevel     string
	output       string
	requireReady bool
	watch        bool
	dryRun       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play one game to completion",
	Long: `Play one game of werewolf with the seats listed in the configuration.

Arbiter waits for every seat backend to pass its health probe, starts the
game, and drives it phase by phase until a team wins or the step limit is
reached. Seats that never become ready are played by fallback unless
--require-ready is set. The finished game is stored in the records database.

Examples:
  # Play with the default config
  arbiter run

  # Use the judge orchestrator and print the result as JSON
  arbiter run --mode judge --output json

  # Swap seat backends by editing the config while the game runs
  arbiter run --watch

  # Validate config without playing
  arbiter run --dry-run`,
	RunE: runGame,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.roomID, "room", "", "room id (random when empty)")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "", "override orchestrator mode (rule_based, judge)")
	runCmd.Flags().IntVar(&runFlags.maxSteps, "max-steps", 0, "override the phase limit")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "text", "result format: text, json, csv")
	runCmd.Flags().BoolVar(&runFlags.requireReady, "require-ready", false, "fail instead of entrusting seats that are not ready")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload seat backends when the config file changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without playing")
}

func runGame(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		printConfigErrors(cmd.ErrOrStderr(), err)
		return err
	}

	// Apply flag overrides
	if runFlags.roomID != "" {
		cfg.Game.RoomID = runFlags.roomID
	}
	if runFlags.mode != "" {
		cfg.Orchestrator.Mode = runFlags.mode
	}
	if runFlags.maxSteps > 0 {
		cfg.Orchestrator.MaxSteps = runFlags.maxSteps
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		printConfigErrors(cmd.ErrOrStderr(), err)
		return err
	}
	config.Publish(cfg)

	format, err := cli.ParseOutputFormat(runFlags.output)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}

	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = cmd.ErrOrStderr()
	logger, err := logging.New(logCfg)
	if err != nil {
		return cli.NewConfigError("telemetry.logging.level", err.Error())
	}
	logger.SetDefault()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	opts := appOptions{
		progress:     cmd.ErrOrStderr(),
		requireReady: runFlags.requireReady,
	}
	if runFlags.watch {
		opts.configPath = cfgFile
	}
	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	if err := a.watch(ctx); err != nil {
		logger.Warn("config watch disabled", "error", err)
	}

	roomID := cfg.Game.RoomID
	if roomID == "" {
		roomID = uuid.NewString()
	}
	logger.Info("starting game", "room", roomID, "seats", len(cfg.Seats), "mode", cfg.Orchestrator.Mode)

	rec, _, playErr := a.play(ctx, roomID, cfg.Orchestrator.MaxSteps)
	if rec != nil {
		if err := writeResult(cmd.OutOrStdout(), format, rec); err != nil {
			return err
		}
	}
	if playErr != nil {
		var cmdErr *cli.CommandError
		if errors.As(playErr, &cmdErr) {
			return cmdErr
		}
		return cli.NewCommandError("run", playErr)
	}
	return nil
}

// writeResult prints a finished game. JSON carries the whole record; text
// and CSV print the seat table.
func writeResult(w io.Writer, format cli.OutputFormat, rec *records.Game) error {
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, rec)
	}
	if format == cli.FormatText {
		winner := string(rec.Winner)
		if winner == "" {
			winner = "none"
		}
		fmt.Fprintf(w, "Room:      %s\n", rec.ID)
		fmt.Fprintf(w, "Winner:    %s\n", winner)
		fmt.Fprintf(w, "Rounds:    %d\n", rec.Rounds)
		fmt.Fprintf(w, "Phases:    %d\n", rec.Steps)
		fmt.Fprintf(w, "Fallbacks: %d\n", rec.Fallbacks)
		fmt.Fprintf(w, "Duration:  %s\n\n", rec.Duration().Round(time.Millisecond))
	}
	return cli.NewFormatter(format).FormatTo(w, seatTable{rec})
}

// seatTable lists the seats of a finished game.
type seatTable struct {
	game *records.Game
}

func (t seatTable) Header() []string {
	return []string{"SEAT", "NAME", "ROLE", "ALIVE", "ENTRUSTED"}
}

func (t seatTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.game.Snapshot.Seats))
	for _, s := range t.game.Snapshot.Seats {
		rows = append(rows, []string{
			s.ID,
			s.Name,
			string(s.Role),
			strconv.FormatBool(s.Alive),
			strconv.FormatBool(s.Entrusted),
		})
	}
	return rows
}

// printConfigErrors lists each invalid field of a validation error.
func printConfigErrors(w io.Writer, err error) {
	errs := cli.ConfigErrors(err)
	if len(errs) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("✗ Configuration invalid:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "  - %s\n", e.Error())
	}
	fmt.Fprint(w, b.String())
}
