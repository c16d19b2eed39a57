package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute embeddings for content that does not have one yet",
	Long: `Embed runs a single backfill pass over all stored content, computing
and saving embeddings for records that are missing one, then exits.`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	written, err := a.Backfiller.Run(ctx)
	if err != nil {
		return fmt.Errorf("embedding backfill: %w", err)
	}

	fmt.Printf("embedded %d records\n", written)
	return nil
}
