package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luislascano01/Stratvithor/internal/server"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.shutdown()

			if cfg.Definitions.Watch {
				go func() {
					if err := a.catalog.Watch(ctx); err != nil {
						logger.Error("definition watch stopped", slog.String("error", err.Error()))
					}
				}()
			}
			go a.service.Run(ctx, cfg.Engine.EvictionInterval)

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
			}
			if handler := a.telemetry.MetricsHandler(); handler != nil {
				opts = append(opts, server.WithMetricsHandler(handler))
			}
			if cfg.Telemetry.StdoutTraces {
				opts = append(opts, server.WithTracerProvider(a.telemetry.TracerProvider))
			}

			return server.New(a.service, opts...).ListenAndServe(ctx, cfg.Server.Address, cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&address, "addr", "", "listen address (overrides server.address)")
	return cmd
}
