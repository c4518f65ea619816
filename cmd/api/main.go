// server/cmd/api/main.go
package main

import (
	"os"

	"spotmytrash-api-server/config"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg       config.Config
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "spotmytrash",
	Short: "Litter capture and live sync service",
	Long:  "Records photo and location captures of litter to MongoDB and object storage, or to local disk when offline, and serves a live feed of reported points.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		c, err := config.LoadConfig(configDir)
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
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./config", "directory containing config.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
