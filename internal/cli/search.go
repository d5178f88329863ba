package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/progress"
	"github.com/slskdbot/slskd-bot/internal/results"
)

// Terminal searches run as a single local user.
const (
	cliUserID    = "cli"
	cliChannelID = "console"
)

// newSearchCmd creates the 'search' command.
func newSearchCmd() *cobra.Command {
	var (
		limit    int
		download int
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the Soulseek network through slskd",
		Long: `Start a search on slskd, wait for peers to answer and print the
aggregated results. Files and folders are listed together in path order; a
folder follows the files inside it and queues all of them.

Examples:
  slskd-bot search "boards of canada geogaddi"
  slskd-bot search "aphex twin" --limit 50
  slskd-bot search "aphex twin selected ambient works" --download 2 --wait`,
		Args: cobra.MinimumNArgs(1),
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

			ctx := GetContext()
			out := cmd.OutOrStdout()

			set, err := runSearch(ctx, a.svc, strings.Join(args, " "), out)
			if err != nil {
				return err
			}
			printResults(out, set, limit)
			if download <= 0 {
				return nil
			}

			a.svc.Activate(cliUserID, set)
			return queueAndWait(ctx, a, out, download, wait)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum number of results to print (0 = all)")
	cmd.Flags().IntVarP(&download, "download", "d", 0, "Queue result number N after the search")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "With --download, wait until the download finishes")

	return cmd
}

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var (
		query string
		wait  bool
	)

	cmd := &cobra.Command{
		Use:   "download <number>",
		Short: "Search and queue one result",
		Long: `Run a search for --query and queue result number <number>, as printed by
'slskd-bot search' for the same query. Folder results queue every file in the
folder.

Examples:
  slskd-bot download 1 --query "artist album"
  slskd-bot download 3 --query "artist album" --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || n < 1 {
				return fmt.Errorf("invalid result number %q", args[0])
			}
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query is required")
			}

			c, err := GetConfig()
			if err != nil {
				return err
			}
			a, err := newApp(c, GetLogger())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := GetContext()
			out := cmd.OutOrStdout()

			set, err := runSearch(ctx, a.svc, query, out)
			if err != nil {
				return err
			}
			a.svc.Activate(cliUserID, set)
			return queueAndWait(ctx, a, out, n, wait)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Search query (required)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the download finishes")

	return cmd
}

// runSearch runs one search with a spinner showing the running result count.
func runSearch(ctx context.Context, svc *bot.Service, query string, out io.Writer) (*results.Set, error) {
	spinner := progress.NewSpinner(out, fmt.Sprintf("Searching for %q...", query))
	set, err := svc.Search(ctx, query, func(s *results.Set) {
		spinner.Describe(fmt.Sprintf("Searching for %q... %d results", query, s.Len()))
	})
	spinner.Finish()

	if err != nil {
		if errors.Is(err, bot.ErrSearchFailed) {
			return nil, fmt.Errorf("slskd refused the search: %w", err)
		}
		return nil, err
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("search for %q completed with no results", query)
	}
	return set, nil
}

// queueAndWait queues result n for the terminal user and, if wait is set,
// reconciles until every queued file has been reported.
func queueAndWait(ctx context.Context, a *app, out io.Writer, n int, wait bool) error {
	q, err := a.svc.Download(ctx, cliUserID, cliChannelID, n)
	if err != nil {
		return err
	}

	if q.Item.Kind == results.KindFolder {
		fmt.Fprintf(out, "✓ Queued folder for download: %s (%d files)\n", q.Item.Name, len(q.Keys))
	} else {
		fmt.Fprintf(out, "✓ Queued for download: %s\n", q.Item.Name)
	}

	if !wait {
		return nil
	}
	return waitForDownloads(ctx, a, out)
}

// printResults writes up to limit results in the order the chat view uses.
func printResults(out io.Writer, set *results.Set, limit int) {
	items := set.Items()
	fmt.Fprintf(out, "Search results for %q: %d\n\n", set.Query(), len(items))

	for i, it := range items {
		if limit > 0 && i >= limit {
			fmt.Fprintf(out, "\n... %d more (use --limit 0 to show all)\n", len(items)-limit)
			break
		}
		fmt.Fprintln(out, resultRow(i+1, it))
	}
}

func resultRow(n int, it results.Item) string {
	slot := "no slot"
	if it.FreeSlot {
		slot = "free slot"
	}
	name := it.Name
	if name == "" {
		name = it.Path
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%3d. %s\n     [%s] [%.2f MB]", n, name, it.Kind, it.SizeMB)
	if it.Kind == results.KindFolder {
		fmt.Fprintf(&b, " [%d files]", it.FileCount)
	}
	fmt.Fprintf(&b, " [%s] [%.0f KB/s] [user: %s]", slot, it.SpeedKB, it.Peer)
	return b.String()
}
