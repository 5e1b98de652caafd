// Package main provides the agent-service entrypoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigPath = "./config.yaml"

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "agent-service: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	addr       string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "agent-service",
		Short: "HTTP service that answers queries with an LLM agent backed by a search service",
		Long: `agent-service exposes GET /agent?q=<query>. An LLM agent fetches raw
results from the search service through its http_search tool and replies
with a synthesized summary.

Running without a command starts the server (same as 'agent-service serve').

Configuration: defaults < config file < environment (SEARCH_SERVICE_URL,
AZURE_OPENAI_DEPLOYMENT, AZURE_API_KEY, AZURE_API_BASE, AZURE_API_VERSION,
AGENT_SERVICE_*). A .env file in the working directory is loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path (a missing file means defaults)")
	rootCmd.Flags().StringVar(&opts.addr, "addr", "", "listen address, overrides server.addr")

	rootCmd.AddCommand(
		serveCmd(opts),
		doctorCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func doctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and reachability of the LLM and search service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), opts.configPath, newDoctorClient())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agent-service %s\n", version)
		},
	}
}
