package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"todoapi/internal/app"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			log.Info("config loaded, connecting to store", "driver", cfg.Store.Driver, "cache", cfg.Redis.Enabled())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			server := &http.Server{
				Addr:         "0.0.0.0:" + cfg.HTTP.Port,
				Handler:      application.Router(),
				ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
				WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
				IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
			}

			errc := make(chan error, 1)
			go func() {
				log.Info("HTTP server listening", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				_ = application.Close(context.Background())
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration())
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return application.Close(shutdownCtx)
		},
	}
}
