package main

import (
	"github.com/spf13/cobra"

	"emotrack/internal/daemon"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith()
}

// newRootCommandWith lets tests substitute the external service clients.
func newRootCommandWith(daemonOpts ...daemon.Option) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, daemonOpts)

	rootCmd := &cobra.Command{
		Use:           "emotrack",
		Short:         "Facial emotion tracking with resilient inference and summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRecordCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newKeysCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
