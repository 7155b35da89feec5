package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"emotrack/internal/digest"
	"emotrack/internal/sessionstore"
)

const sessionTimeLayout = "2006-01-02 15:04"

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Browse archived sessions",
	}

	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	sessionsCmd.AddCommand(newSessionsShowCommand(ctx))
	sessionsCmd.AddCommand(newSessionsDeleteCommand(ctx))

	return sessionsCmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *sessionstore.Store) error {
				sessions, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, sessions)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, sess := range sessions {
					rows = append(rows, []string{
						shortSessionID(sess.ID),
						sess.StartedAt.Local().Format(sessionTimeLayout),
						participantLabel(sess.Participant),
						digest.FormatClock(sess.DurationSeconds),
						strconv.Itoa(sess.PointCount),
						sess.SummarySource,
					})
				}
				table := renderTable(
					[]string{"ID", "Started", "Participant", "Duration", "Points", "Summary"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
					fmt.Sprintf("%d sessions", len(sessions)),
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum sessions to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session (any unique ID prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
				d := digest.Compute(observations)
				if asJSON {
					return writeJSON(cmd, map[string]any{
						"session":     sess,
						"digest":      d,
						"key_moments": d.KeyMoments(),
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:      %s\n", sess.ID)
				fmt.Fprintf(out, "Participant:  %s\n", participantLabel(sess.Participant))
				fmt.Fprintf(out, "Started:      %s\n", sess.StartedAt.Local().Format(sessionTimeLayout))
				fmt.Fprintf(out, "Duration:     %s\n", digest.FormatClock(sess.DurationSeconds))
				fmt.Fprintf(out, "Data points:  %d (%s)\n", sess.PointCount, sess.Quality)
				fmt.Fprintf(out, "Volatility:   %s\n", sess.Volatility)
				if top := d.Top(); len(top) > 0 {
					parts := make([]string, 0, len(top))
					for _, r := range top {
						parts = append(parts, fmt.Sprintf("%s %s", digest.Label(r.Name), r.Percent()))
					}
					fmt.Fprintf(out, "Top emotions: %s\n", strings.Join(parts, ", "))
				}
				if notes := strings.TrimSpace(sess.Notes); notes != "" {
					fmt.Fprintf(out, "Notes:        %s\n", notes)
				}
				fmt.Fprintf(out, "\nSummary (%s):\n%s\n", sess.SummarySource, sess.Summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSessionsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its observations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *sessionstore.Store) error {
				id, err := store.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
				return nil
			})
		},
	}
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func participantLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Anonymous"
	}
	return name
}
