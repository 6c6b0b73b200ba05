package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grafeo/grafeo-api/internal/api"
	"github.com/grafeo/grafeo-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the demo sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		e := api.NewRouter(api.Dependencies{
			Auth:     a.auth,
			Users:    a.users,
			Sessions: a.sessions,
			Mongo:    a.db,
			Redis:    a.redis,
			Log:      logger.Component("http"),
		})

		sweepDone := make(chan struct{})
		go func() {
			defer close(sweepDone)
			a.sweeper.Run(ctx)
		}()

		serverErr := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Port).Msg("http server listening")
			if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
		case err := <-serverErr:
			if err != nil {
				stop()
				<-sweepDone
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown")
		}
		stop()
		<-sweepDone

		log.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP listen port (env: PORT)")
}
