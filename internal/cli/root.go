// Package cli provides the command-line interface for slskd-bot.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/version"
)

var (
	// Global flags
	cfgFile     string
	envFile     string
	slskdURL    string
	slskdAPIKey string
	verbose     bool
	debug       bool

	// Loaded once per invocation by PersistentPreRunE
	cfg *config.Config

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slskd-bot",
		Short: "Discord bot and CLI for searching and downloading through slskd",
		Long: `slskd-bot ` + version.Version + ` - Built: ` + version.BuildTime + `
Searches the Soulseek network through an slskd instance, queues downloads,
posts a message when they finish and asks Navidrome to rescan its library.

Run the bot:
  slskd-bot run

Use it from a terminal:
  slskd-bot search "artist album"
  slskd-bot transfers --watch

Configuration is read from ~/.config/slskd-bot/bot.conf, an optional .env
file and the environment (DISCORD_BOT_TOKEN, SLSKD_API_URL, SLSKD_API_KEY,
NAVIDROME_URL, NAVIDROME_ADMIN_USER, NAVIDROME_ADMIN_PASSWORD).
Priority: flags > environment > config file > defaults`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = loaded

			logFile, err := cfg.LogFilePath()
			if err != nil {
				return err
			}
			logger = logging.New(logging.Options{
				Level: cfg.Logging.Level,
				File:  logFile,
				JSON:  cfg.Logging.JSON,
			})
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&slskdURL, "slskd-url", "", "slskd base URL (overrides config and environment)")
	rootCmd.PersistentFlags().StringVar(&slskdAPIKey, "slskd-api-key", "", "slskd API key (overrides config and environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	AddCommands(rootCmd)

	return rootCmd
}

// loadConfig merges the config file, the .env file, the environment and the
// global flags.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	c, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.ApplyEnv()

	if slskdURL != "" {
		c.Slskd.URL = slskdURL
	}
	if slskdAPIKey != "" {
		c.Slskd.APIKey = slskdAPIKey
	}
	if verbose || debug {
		c.Logging.Level = "debug"
	}
	return c, nil
}

// Execute runs the root command with signal handling.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down...\n", sig)
			cancelFunc()
		case <-rootContext.Done():
		}
	}()

	return NewRootCmd().ExecuteContext(rootContext)
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newTransfersCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the root context. It is cancelled on SIGINT/SIGTERM.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// GetConfig returns the merged configuration, loading it if no command has
// done so yet.
func GetConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg = loaded
	return cfg, nil
}
