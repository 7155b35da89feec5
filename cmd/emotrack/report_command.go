package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"emotrack/internal/report"
	"emotrack/internal/sessionstore"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Render the report for an archived session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *sessionstore.Store) error {
				id, err := store.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				sess, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				observations, err := store.Observations(cmd.Context(), id)
				if err != nil {
					return err
				}
				doc := report.New(*sess, observations, time.Now())

				var w io.Writer = cmd.OutOrStdout()
				target := strings.TrimSpace(output)
				if target != "" {
					file, err := os.Create(target)
					if err != nil {
						return fmt.Errorf("create report file: %w", err)
					}
					defer file.Close()
					w = file
				}
				if err := report.Render(w, doc, reportFormat); err != nil {
					return err
				}
				if target != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s report to %s\n", reportFormat, target)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatTable), "Report format: table, markdown or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}
