package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/tui"
)

func newScriptsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Inspect tracked hook scripts",
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List every tracked script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.client(opts.timeout).Scripts(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracked scripts.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderScripts(records, time.Now()))
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	show := &cobra.Command{
		Use:   "show <owner>",
		Short: "Show one tracked script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := opts.client(opts.timeout).Script(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Act on every script of a job",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "kill <job-id>",
		Short: "Kill the process group of every script running for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			n, err := opts.client(opts.timeout).KillJob(cmd.Context(), uint32(job))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signaled %d script(s) of job %d.\n", n, job)
			return nil
		},
	})
	return cmd
}

func newFlushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Kill every tracked script and wait for cleanup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The barrier can outlast any request timeout.
			resp, err := opts.client(0).Flush(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed %d script(s) in %s.\n",
				resp.Flushed, time.Duration(resp.DurationMS)*time.Millisecond)
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tracker counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.client(opts.timeout).Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStats(*stats))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent script runs from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client(opts.timeout).Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp.Runs)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderRuns(resp.Runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newAnomaliesCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Show recorded tracker anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client(opts.timeout).Anomalies(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp.Anomalies)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of anomalies to show")
	return cmd
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		since int64
		types []string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream tracker events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ch := make(chan events.Event, 64)
			errCh := make(chan error, 1)
			go func() { errCh <- opts.client(0).EventsOf(ctx, since, types, ch) }()

			theme := tui.NewDefaultTheme()
			for {
				select {
				case ev := <-ch:
					fmt.Fprintln(cmd.OutOrStdout(), tui.FormatEvent(ev, theme))
				case err := <-errCh:
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "Replay buffered events after this id")
	cmd.Flags().StringSliceVar(&types, "type", nil, `Only these event types; "flush." matches a family`)
	return cmd
}

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Live terminal view of tracked scripts and events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := tui.NewMonitor(cmd.Context(), opts.client(0))
			p := tea.NewProgram(m, tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
