package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/slskdbot/slskd-bot/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading so version works with a broken config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slskd-bot %s\n", version.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Built:   %s\n", version.BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  Go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
