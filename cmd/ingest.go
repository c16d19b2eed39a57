package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect content from the configured sources once",
	Long: `Ingest runs a single collection pass over the configured RSS feeds,
news aggregator pages, the glossary index, and the subreddit listings,
then exits. A failing source is reported but does not stop the
remaining sources.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var failed int

	articles, err := a.Feeds.Fetch(ctx)
	if err != nil {
		failed++
		a.Logger.Error("feed collection failed", "error", err)
	} else {
		fmt.Printf("feeds: %d new articles\n", articles)
	}

	scraped, err := a.Aggregator.Scrape(ctx)
	if err != nil {
		failed++
		a.Logger.Error("aggregator collection failed", "error", err)
	} else {
		fmt.Printf("aggregator: %d new articles\n", scraped)
	}

	terms, err := a.Glossary.Scrape(ctx)
	if err != nil {
		failed++
		a.Logger.Error("glossary collection failed", "error", err)
	} else {
		fmt.Printf("glossary: %d new terms\n", terms)
	}

	posts, err := a.Social.Fetch(ctx)
	if err != nil {
		failed++
		a.Logger.Error("social collection failed", "error", err)
	} else {
		fmt.Printf("social: %d new posts\n", posts)
	}

	if failed > 0 {
		return fmt.Errorf("%d of 4 sources failed", failed)
	}
	return nil
}
