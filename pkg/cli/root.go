// Package cli implements the air2graph command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"air2graph/internal/config"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "air2graph",
		Short:         "Spreadsheet-to-property-graph sync service",
		Long:          "air2graph mirrors spreadsheet-style tables into a property graph, driven by a metatable of per-table ingestion instructions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file (missing file is ignored)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newRunsCmd())
	return rootCmd
}

// loadConfigAndLogger resolves configuration and builds the process logger,
// emitting any config warnings through it.
func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}
	return cfg, logger, nil
}
