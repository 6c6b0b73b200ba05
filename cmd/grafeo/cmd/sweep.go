package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired demo identities once and exit",
	Long: `Runs a single demo purge cycle, honouring the Redis sweep lock when
REDIS_ADDR is set. Useful from cron when the server runs with several replicas.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		report, err := a.sweeper.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().
			Int("expired", report.Expired).
			Int("purged", report.Purged).
			Int("failed", report.Failed).
			Msg("sweep finished")
		return nil
	},
}
