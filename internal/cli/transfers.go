package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/progress"
)

// newTransfersCmd creates the 'transfers' command.
func newTransfersCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:     "transfers",
		Aliases: []string{"progress", "status"},
		Short:   "Show incoming transfers on slskd",
		Long: `List every incoming transfer slskd knows about with its state and
percentage. With --watch the list is redrawn as live progress bars until
interrupted.

Examples:
  slskd-bot transfers
  slskd-bot transfers --watch --interval 2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GetConfig()
			if err != nil {
				return err
			}
			a, err := newApp(c, GetLogger())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if watch {
				if interval <= 0 {
					return fmt.Errorf("--interval must be positive")
				}
				return watchTransfers(GetContext(), a.svc, out, interval)
			}

			transfers, err := a.svc.Progress(GetContext())
			if err != nil {
				return fmt.Errorf("could not retrieve download status: %w", err)
			}
			printTransfers(out, transfers)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep showing live progress bars")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval for --watch")

	return cmd
}

func printTransfers(out io.Writer, transfers []bot.TransferProgress) {
	if len(transfers) == 0 {
		fmt.Fprintln(out, "No active downloads found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tPEER\tSTATE\tPROGRESS\t")
	for _, t := range transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %5.1f%%\t\n",
			t.Filename, t.Peer, t.State, bot.ProgressBar(t.Percent, "#", "-"), t.Percent)
	}
	w.Flush()
}

// watchTransfers refreshes a TransferUI every interval until ctx is done.
// A failed fetch is logged above the bars and the previous view is kept.
func watchTransfers(ctx context.Context, svc *bot.Service, out io.Writer, interval time.Duration) error {
	ui := progress.NewTransferUI(out)
	defer ui.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		transfers, err := svc.Progress(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(ui.Writer(), "Could not retrieve download status: %v\n", err)
		} else {
			ui.Update(transfers)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
