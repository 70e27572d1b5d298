// Package cli holds what the arbiter commands share: output formatting
// for --output, the per-phase progress printer, signal handling and the
// mapping from errors to exit codes.
//
// Tables (game lists, audit logs, evidence) implement Table and are
// rendered by the Formatter for the chosen format:
//
//	format, err := cli.ParseOutputFormat(flag)
//	if err != nil {
//		return cli.NewConfigError("output", err.Error())
//	}
//	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
//
// ExitCode returns 2 for configuration problems and 3 when a table was
// required to be ready and was not.
package cli
