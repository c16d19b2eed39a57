// Package cmd implements the finsight command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "Finsight - a financial news question answering assistant",
	Long: `Finsight collects financial news, articles, and glossary terms into a
vector-searchable store and answers natural-language financial questions
grounded in the retrieved context, with source citations.

Common usage:

  finsight ingest          collect fresh content from the configured sources
  finsight embed           compute embeddings for newly collected content
  finsight ask "..."       answer a question from the command line
  finsight serve           start the HTTP API with background refresh`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger honoring the verbose flag.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// setupApp loads configuration and initializes the application container.
// Callers must Close the returned App.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
