package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/config"
)

var (
	cfg *config.Config

	profileFlag string
	pinFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "locale",
	Short: "Review the businesses around home",
	Long:  "Fetches points of interest near a profile's home from OpenStreetMap, records per-profile visit outcomes, and reports coverage by category.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		mode := "cli"
		if cmd.Name() == "serve" {
			mode = "serve"
		}
		return cfg.Validate(mode)
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

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile username (default from profile.default)")
	rootCmd.PersistentFlags().StringVar(&pinFlag, "pin", "", "PIN for a protected profile")
}
