// Command atctl inspects a running autotiling daemon over its control socket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ruixi-rebirth/async-autotiling/internal/control/client"
)

const timestampFormat = "2006-01-02 15:04:05"

type rootOptions struct {
	socket  string
	timeout time.Duration
	json    bool
}

// requestContext bounds one control round trip. A non-positive timeout
// disables the deadline entirely.
func (o *rootOptions) requestContext() (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "atctl",
		Short: "Inspect a running autotiling daemon",
		Long: `atctl talks to the autotiling control socket and reports what the daemon
is doing: connection state, recent split decisions, and counters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.socket, "socket", "", "path to the control socket (defaults to $XDG_RUNTIME_DIR/autotiling/control.sock)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "control request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print the raw JSON payload instead of text")
	root.AddCommand(newStatusCmd(opts), newHistoryCmd(opts), newMetricsCmd(opts))
	return root
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show connection state, effective policy, and the last decision",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := client.New(opts.socket)
			if err != nil {
				return err
			}
			ctx, cancel := opts.requestContext()
			defer cancel()
			status, err := cli.Status(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			return renderStatus(cmd.OutOrStdout(), status)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent split decisions, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := client.New(opts.socket)
			if err != nil {
				return err
			}
			ctx, cancel := opts.requestContext()
			defer cancel()
			decisions, err := cli.History(ctx, limit)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), decisions)
			}
			return renderHistory(cmd.OutOrStdout(), decisions)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "return at most N decisions (0 for all retained)")
	return cmd
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "metrics",
		Short:         "Show the daemon's counter snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := client.New(opts.socket)
			if err != nil {
				return err
			}
			ctx, cancel := opts.requestContext()
			defer cancel()
			metrics, err := cli.Metrics(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), metrics)
			}
			return renderMetrics(cmd.OutOrStdout(), metrics)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderStatus(w io.Writer, status client.StatusInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Connected:\t%v\n", status.Connected)
	if !status.ConnectedAt.IsZero() {
		fmt.Fprintf(tw, "Connected since:\t%s\n", status.ConnectedAt.Format(timestampFormat))
	}
	if !status.StartedAt.IsZero() {
		fmt.Fprintf(tw, "Uptime:\t%s\n", time.Since(status.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(tw, "Ratio:\t%.2f\n", status.Ratio)
	fmt.Fprintf(tw, "Workspaces:\t%s\n", joinOr(status.Workspaces, "all"))
	fmt.Fprintf(tw, "Skip layouts:\t%s\n", joinOr(status.SkipLayouts, "none"))
	fmt.Fprintf(tw, "Dry run:\t%v\n", status.DryRun)
	fmt.Fprintf(tw, "Applied:\t%s\n", totals(status.Applied))
	if status.Simulated.Vertical+status.Simulated.Horizontal > 0 {
		fmt.Fprintf(tw, "Simulated:\t%s\n", totals(status.Simulated))
	}
	if status.LastDecision != nil {
		fmt.Fprintf(tw, "Last decision:\t%s\n", describeDecision(*status.LastDecision))
	}
	return tw.Flush()
}

func renderHistory(w io.Writer, decisions []client.Decision) error {
	if len(decisions) == 0 {
		_, err := fmt.Fprintln(w, "No decisions recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tWINDOW\tWORKSPACE\tSIZE\tCOMMAND\tSTATUS")
	for _, d := range decisions {
		status := d.Status
		if d.Error != "" {
			status = fmt.Sprintf("%s (%s)", d.Status, d.Error)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%dx%d\t%s\t%s\n",
			d.Seq, d.Timestamp.Format(timestampFormat), d.WindowID, d.Workspace,
			d.Width, d.Height, d.Command, status)
	}
	return tw.Flush()
}

func renderMetrics(w io.Writer, metrics client.MetricsInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !metrics.Started.IsZero() {
		fmt.Fprintf(tw, "Started:\t%s\n", metrics.Started.Format(timestampFormat))
	}
	fmt.Fprintf(tw, "Focus events:\t%d\n", metrics.FocusEvents)
	fmt.Fprintf(tw, "Applied:\t%s\n", totals(metrics.Applied))
	fmt.Fprintf(tw, "Dry run:\t%s\n", totals(metrics.DryRun))
	fmt.Fprintf(tw, "Command errors:\t%d\n", metrics.CommandErrors)
	fmt.Fprintf(tw, "Reconnects:\t%d\n", metrics.Reconnects)
	fmt.Fprintf(tw, "Disconnects:\t%d\n", metrics.Disconnects)
	if !metrics.LastDecision.IsZero() {
		fmt.Fprintf(tw, "Last decision:\t%s\n", metrics.LastDecision.Format(timestampFormat))
	}
	for _, skip := range metrics.Skips {
		fmt.Fprintf(tw, "Skipped (%s):\t%d\n", skip.Reason, skip.Count)
	}
	return tw.Flush()
}

func describeDecision(d client.Decision) string {
	desc := fmt.Sprintf("%s for window %d (%dx%d) on %q at %s",
		d.Command, d.WindowID, d.Width, d.Height, d.Workspace,
		d.Timestamp.Format(timestampFormat))
	if d.Status != "applied" {
		desc += " [" + d.Status + "]"
	}
	if d.Error != "" {
		desc += ": " + d.Error
	}
	return desc
}

func totals(t client.SplitTotals) string {
	return fmt.Sprintf("%d vertical, %d horizontal", t.Vertical, t.Horizontal)
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitErr(err)
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
