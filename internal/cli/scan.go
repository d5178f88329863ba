package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/navidrome"
)

// newScanCmd creates the 'scan' command.
func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Ask Navidrome to rescan its library",
		Long: `Send the same library scan request the bot sends after a download
finishes. Requires NAVIDROME_ADMIN_USER and NAVIDROME_ADMIN_PASSWORD (or the
[navidrome] section of the config file).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GetConfig()
			if err != nil {
				return err
			}
			log := GetLogger()

			scanner, err := navidrome.NewScanner(c.Navidrome, c.Proxy, log.Component("navidrome"))
			if err != nil {
				return err
			}
			if err := scanner.Validate(); errors.Is(err, navidrome.ErrNoCredentials) {
				return fmt.Errorf("%w: set %s and %s", err, config.EnvNavidromeUser, config.EnvNavidromePassword)
			}

			if err := scanner.TriggerScan(GetContext()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Library scan requested at %s\n", c.Navidrome.URL)
			return nil
		},
	}

	return cmd
}
