package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/http"
	"github.com/slskdbot/slskd-bot/internal/pathutil"
	"github.com/slskdbot/slskd-bot/internal/slskd"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage slskd-bot configuration",
		Long: `Configuration management commands for slskd-bot.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the slskd connection
  path  - Show configuration file path`,
		// Subcommands load the config themselves so init still works when
		// the existing file does not parse.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			GetLogger()
			return nil
		},
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return pathutil.ResolveAbsolutePath(cfgFile)
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for slskd-bot.

The configuration is saved to ~/.config/slskd-bot/bot.conf with 0600
permissions, since it holds the Discord token and the slskd API key.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			c := runConfigWizard(p)
			if err := c.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(c, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Test your configuration with: slskd-bot config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// runConfigWizard asks for each setting, offering the defaults.
func runConfigWizard(p *prompter) *config.Config {
	c := config.NewConfig()

	p.println("slskd-bot Configuration Setup")
	p.println("=============================")
	p.println("")

	c.Discord.Token = p.secret("Discord bot token")
	c.Discord.CommandPrefix = p.ask("Command prefix", c.Discord.CommandPrefix)

	c.Slskd.URL = p.ask("slskd URL", c.Slskd.URL)
	c.Slskd.APIKey = p.secret("slskd API key")

	c.Navidrome.URL = p.ask("Navidrome URL", c.Navidrome.URL)
	c.Navidrome.User = p.ask("Navidrome admin user (empty disables scans)", "")
	if c.Navidrome.User != "" {
		c.Navidrome.Password = p.secret("Navidrome admin password")
	}

	c.Monitor.PollIntervalSeconds = p.askInt("Poll interval in seconds", c.Monitor.PollIntervalSeconds)
	c.Notifications.Enabled = p.askBool("Post completion messages", c.Notifications.Enabled)

	if p.askBool("Use an HTTP proxy", false) {
		c.Proxy.Mode = p.ask("Proxy mode (system, basic, ntlm)", "system")
		if c.Proxy.Mode == "basic" || c.Proxy.Mode == "ntlm" {
			c.Proxy.Host = p.ask("Proxy host", "")
			c.Proxy.Port = p.askInt("Proxy port", 8080)
			c.Proxy.User = p.ask("Proxy user", "")
			if c.Proxy.User != "" {
				c.Proxy.Password = p.secret("Proxy password")
			}
		}
	}

	return c
}

// prompter reads answers line by line. Secrets are read without echo when
// the input is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *prompter) println(s string) {
	fmt.Fprintln(p.out, s)
}

func (p *prompter) line() string {
	input, _ := p.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (p *prompter) ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if v := p.line(); v != "" {
		return v
	}
	return def
}

func (p *prompter) askInt(label string, def int) int {
	for {
		v := p.ask(label, strconv.Itoa(def))
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		fmt.Fprintln(p.out, "Please enter a number.")
	}
}

func (p *prompter) askBool(label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
	switch strings.ToLower(p.line()) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func (p *prompter) secret(label string) string {
	fmt.Fprintf(p.out, "%s: ", label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return p.line()
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings with secrets masked.

This command shows the merged configuration from:
  1. Configuration file (~/.config/slskd-bot/bot.conf)
  2. .env file and environment variables
  3. Command-line flags (--slskd-url, --slskd-api-key)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GetConfig()
			if err != nil {
				return err
			}
			path, _ := configPath()
			printConfig(cmd.OutOrStdout(), c.Redacted(), path)
			return nil
		},
	}

	return cmd
}

func printConfig(out io.Writer, c *config.Config, path string) {
	orNone := func(s string) string {
		if s == "" {
			return "<not set>"
		}
		return s
	}

	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Discord:")
	fmt.Fprintf(out, "  Token:          %s\n", orNone(c.Discord.Token))
	fmt.Fprintf(out, "  Command Prefix: %s\n", c.Discord.CommandPrefix)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "slskd:")
	fmt.Fprintf(out, "  URL:       %s\n", orNone(c.Slskd.URL))
	fmt.Fprintf(out, "  API Key:   %s\n", orNone(c.Slskd.APIKey))
	fmt.Fprintf(out, "  Retry Max: %d\n", c.Slskd.RetryMax)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Navidrome:")
	fmt.Fprintf(out, "  URL:      %s\n", orNone(c.Navidrome.URL))
	fmt.Fprintf(out, "  User:     %s\n", orNone(c.Navidrome.User))
	fmt.Fprintf(out, "  Password: %s\n", orNone(c.Navidrome.Password))
	fmt.Fprintf(out, "  Timeout:  %ds\n", c.Navidrome.TimeoutSeconds)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Monitor:")
	fmt.Fprintf(out, "  Poll Interval: %ds\n", c.Monitor.PollIntervalSeconds)
	fmt.Fprintf(out, "  Notifications: %t\n", c.Notifications.Enabled)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Search:")
	fmt.Fprintf(out, "  Poll Attempts: %d\n", c.Search.PollAttempts)
	fmt.Fprintf(out, "  Poll Interval: %ds\n", c.Search.PollIntervalSeconds)
	fmt.Fprintf(out, "  Page Size:     %d\n", c.Search.PageSize)
	fmt.Fprintf(out, "  View Timeout:  %ds\n", c.Search.ViewTimeoutSeconds)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", c.Proxy.Mode)
	if c.Proxy.Host != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", c.Proxy.Host)
		fmt.Fprintf(out, "  Proxy Port: %d\n", c.Proxy.Port)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Logging:")
	fmt.Fprintf(out, "  Level: %s\n", c.Logging.Level)
	if c.Logging.File != "" {
		fmt.Fprintf(out, "  File:  %s\n", c.Logging.File)
	}
	if c.Metrics.Listen != "" {
		fmt.Fprintf(out, "  Metrics: %s\n", c.Metrics.Listen)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the slskd connection",
		Long: `Test the slskd connection with the current configuration.

Use this to verify the API key and that slskd is logged in to the Soulseek
network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GetConfig()
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			log := GetLogger()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Testing slskd Connection")
			fmt.Fprintln(out, "========================")
			fmt.Fprintf(out, "URL: %s\n\n", c.Slskd.URL)

			client, err := slskd.NewClient(c.Slskd, c.Proxy, log.Component("slskd"))
			if err != nil {
				return fmt.Errorf("failed to create slskd client: %w", err)
			}

			ctx, cancel := context.WithTimeout(GetContext(), 30*time.Second)
			defer cancel()

			retry := http.DefaultConfig()
			retry.MaxRetries = 2
			status, state := bot.Probe(ctx, client, retry, log.Component("probe"))
			return reportProbe(out, status, state)
		},
	}

	return cmd
}

func reportProbe(out io.Writer, status bot.ProbeStatus, state *slskd.ApplicationState) error {
	if status == bot.ProbeUnreachable || state == nil {
		fmt.Fprintln(out, "✗ Connection FAILED")
		return fmt.Errorf("slskd is unreachable")
	}

	fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  slskd version: %s\n", state.Version.Full)
	fmt.Fprintf(out, "  Server:        %s (%s)\n", state.Server.Address, state.Server.State)
	if status == bot.ProbeLoggedIn {
		fmt.Fprintf(out, "  Logged in as:  %s\n", state.User.Username)
		return nil
	}
	fmt.Fprintln(out, "  ⚠ slskd is not logged in to the Soulseek network; searches will return nothing.")
	return nil
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: slskd-bot config init")
			}
			return nil
		},
	}

	return cmd
}
