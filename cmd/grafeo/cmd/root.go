package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/grafeo/grafeo-api/internal/pkg/config"
	"github.com/grafeo/grafeo-api/pkg/logger"
)

const serviceName = "grafeo-api"

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grafeo",
	Short: "Grafeo API server",
	Long: `Grafeo API serves sign-in, sign-up, federated and demo sessions for the
Grafeo indicator tracker, and purges expired demo identities.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.LogLevel = lvl
		}
		log = logger.Init(logger.Options{
			Level:   cfg.LogLevel,
			Pretty:  cfg.IsDevelopment(),
			Service: serviceName,
			Env:     cfg.Env,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Minimum log level (env: LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
