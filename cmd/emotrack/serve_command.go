package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"emotrack/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API, live feed and analysis proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d, logger, err := ctx.openDaemon()
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Start(signalCtx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "emotrack serving on %s (proxy %s)\n", cfg.Server.Bind, yesNo(cfg.Server.ProxyEnabled))
			err = d.Serve(signalCtx)
			logger.Info("emotrack server shutting down", logging.String(logging.FieldEventType, "server_stopped"))
			return err
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind (host:port)")
	return cmd
}
