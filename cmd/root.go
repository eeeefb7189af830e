package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sits",
	Short: "Municipal deprivation and territorial risk pipeline",
	Long: "Joins census tables to urban block and rural locality layers, scores deprivation, " +
		"economic activity, slope and hazard restrictions per zone, and writes GIS datasets " +
		"and dashboard reports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
