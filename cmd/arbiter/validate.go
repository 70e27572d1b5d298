package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/config"
)

var validateFlags struct {
	strict bool
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file with environment overrides and check it.

Validation covers the table setup (player count, role distribution and
night order), seat registrations, dispatch limits, orchestrator mode and
telemetry settings. Composition remarks such as a table without a seer are
reported as warnings.

Examples:
  # Validate the default config
  arbiter validate

  # Treat warnings as errors in CI
  arbiter validate --config table.yaml --strict

  # JSON output
  arbiter validate -o json`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.strict, "strict", false, "treat warnings as errors")
	validateCmd.Flags().StringVarP(&validateFlags.format, "output", "o", "text", "output format: text, json")
}

// validationReport is the JSON form of a validation run.
type validationReport struct {
	File     string             `json:"file"`
	Valid    bool               `json:"valid"`
	Errors   []*cli.ConfigError `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Setup    string             `json:"setup,omitempty"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.format)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}

	report := validationReport{File: cfgFile}
	cfg, loadErr := config.LoadConfigWithEnvOverrides(cfgFile)
	if loadErr != nil {
		report.Errors = cli.ConfigErrors(loadErr)
		if len(report.Errors) == 0 {
			report.Errors = []*cli.ConfigError{cli.NewConfigError("", loadErr.Error())}
		}
	} else {
		report.Valid = true
		report.Warnings = config.Warnings(cfg)
		if setup, err := cfg.Game.Setup(); err == nil {
			report.Setup = setup.String()
		}
		if validateFlags.strict && len(report.Warnings) > 0 {
			report.Valid = false
		}
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(out, report); err != nil {
			return err
		}
	} else {
		printReport(cmd, report)
	}

	switch {
	case loadErr != nil:
		return loadErr
	case !report.Valid:
		return cli.NewConfigError("", fmt.Sprintf("%d warnings in strict mode", len(report.Warnings)))
	}
	return nil
}

func printReport(cmd *cobra.Command, r validationReport) {
	out := cmd.OutOrStdout()
	if len(r.Errors) > 0 {
		fmt.Fprintf(out, "✗ %s is invalid:\n", r.File)
		for _, e := range r.Errors {
			fmt.Fprintf(out, "  - %s\n", e.Error())
		}
		return
	}
	if r.Valid {
		fmt.Fprintf(out, "✓ %s is valid\n", r.File)
	} else {
		fmt.Fprintf(out, "✗ %s has warnings (strict mode)\n", r.File)
	}
	if r.Setup != "" {
		fmt.Fprintf(out, "  Table: %s\n", r.Setup)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "  ! %s\n", w)
	}
}
