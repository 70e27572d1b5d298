package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"lycan-hq/arbiter/internal/agenttest"
	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/server"
	"lycan-hq/arbiter/pkg/telemetry/tracing"
)

var agentFlags struct {
	listen    string
	modelType string
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run agent backends",
}

var agentServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a deterministic agent backend",
	Long: `Serve a seat backend that answers every turn with the first legal choice
of the state it is shown. It implements POST /act and GET /health and is
meant for local tables and smoke tests; point any number of seats at it.

Examples:
  # Serve on the default address
  arbiter agent serve

  # Serve as a distinct model family for admission limits
  arbiter agent serve --listen 127.0.0.1:9001 --model-type scripted-b`,
	Args: cobra.NoArgs,
	RunE: serveAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentServeCmd)

	agentServeCmd.Flags().StringVarP(&agentFlags.listen, "listen", "l", "127.0.0.1:9000", "listen address")
	agentServeCmd.Flags().StringVar(&agentFlags.modelType, "model-type", "scripted", "model type reported by /health")
}

func serveAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	ln, err := net.Listen("tcp", agentFlags.listen)
	if err != nil {
		return cli.NewCommandError("agent serve", fmt.Errorf("failed to listen on %s: %w", agentFlags.listen, err))
	}
	agent := agenttest.New(agentFlags.modelType, agenttest.Deterministic)
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Agent listening on http://%s\n", ln.Addr())
	return runAgentServer(ctx, ln, tracing.HTTPMiddleware(agent))
}

// runAgentServer serves h on ln until ctx is done, then shuts down
// gracefully.
func runAgentServer(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := server.New("agent", h, server.Config{ShutdownTimeout: shutdownTimeout})
	return srv.Serve(ctx, ln)
}
