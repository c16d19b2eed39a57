package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with background content refresh",
	Long: `Serve starts the HTTP API and the background supervisor that
periodically collects fresh content and embeds it. The server shuts down
gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Supervisor.Start(ctx)

	server := api.NewServer(a.Pipeline, a.Store, a.Supervisor, a.DBPool, a.Logger)
	return server.Run(ctx, a.Config.HTTPAddr)
}
