package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"emotrack/internal/frames"
	"emotrack/internal/logging"
	"emotrack/internal/report"
	"emotrack/internal/session"
)

const liveRefresh = time.Second

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		participant string
		notes       string
		source      string
		format      string
		duration    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a session in the foreground and print its report",
		Long: "Record captures frames until Ctrl+C (or --duration elapses), then summarises,\n" +
			"archives and prints the session report. Only one recorder may run per data directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reportFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if duration < 0 {
				return fmt.Errorf("--duration must not be negative")
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

			opts := session.StartOptions{Participant: participant, Notes: notes}
			if spec := strings.TrimSpace(source); spec != "" {
				src, err := frames.New(spec, ctx.configValue().Capture.JPEGQuality, nil)
				if err != nil {
					return err
				}
				opts.Source = src
			}

			stderr := cmd.ErrOrStderr()
			snap, err := d.Controller().Start(signalCtx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Recording session %s (press Ctrl+C to stop)\n", snap.ID)

			waitForStop(signalCtx, duration, stderr, d.Controller().Snapshot)

			completed, err := d.Controller().Stop(context.WithoutCancel(signalCtx))
			if err != nil {
				return err
			}
			if completed.Archived {
				fmt.Fprintf(stderr, "Session archived as %s\n", completed.Session.ID)
			} else {
				logging.WarnWithContext(logger, "session not archived", "archive_failed",
					logging.String(logging.FieldSessionID, completed.Session.ID),
					logging.String(logging.FieldImpact, "session is missing from history"),
				)
				fmt.Fprintln(stderr, "Warning: session could not be archived; the report below is the only copy")
			}

			doc := report.New(completed.Session, completed.Observations, time.Now())
			return report.Render(cmd.OutOrStdout(), doc, reportFormat)
		},
	}

	cmd.Flags().StringVarP(&participant, "participant", "p", "", "Participant label stored with the session")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Free-form session notes")
	cmd.Flags().StringVar(&source, "source", "", "Frame source override (directory or snapshot URL)")
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatTable), "Report format: table, markdown or csv")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop automatically after this long (0 waits for Ctrl+C)")
	return cmd
}

// waitForStop blocks until ctx is cancelled or limit elapses. On a terminal it
// redraws a live status line every second.
func waitForStop(ctx context.Context, limit time.Duration, status io.Writer, snapshot func() session.Snapshot) {
	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	colorize := shouldColorize(status)
	var refresh <-chan time.Time
	if colorize {
		ticker := time.NewTicker(liveRefresh)
		defer ticker.Stop()
		refresh = ticker.C
		defer fmt.Fprint(status, clearLine)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-refresh:
			fmt.Fprint(status, clearLine+renderLiveLine(snapshot(), colorize))
		}
	}
}
