package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/sits/internal/metrics"
	"github.com/sells-group/sits/internal/server"
)

var (
	servePort    int
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the zone datasets to the dashboard",
	Long:  "Starts a read-only HTTP API over the datasets in server.data_dir: layers, filtered zone lists, summaries and CSV exports.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveDataDir != "" {
			cfg.Server.DataDir = serveDataDir
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv := server.New(cfg.Server, server.WithMetrics(metrics.New()))
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "dataset directory (default from config)")
	rootCmd.AddCommand(serveCmd)
}
