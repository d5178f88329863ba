package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables understood by the bot. The names match the ones the
// docker-compose deployments already export.
const (
	EnvDiscordToken      = "DISCORD_BOT_TOKEN"
	EnvSlskdURL          = "SLSKD_API_URL"
	EnvSlskdAPIKey       = "SLSKD_API_KEY"
	EnvNavidromeURL      = "NAVIDROME_URL"
	EnvNavidromeUser     = "NAVIDROME_ADMIN_USER"
	EnvNavidromePassword = "NAVIDROME_ADMIN_PASSWORD"
	EnvLogLevel          = "SLSKD_BOT_LOG_LEVEL"
	EnvMonitorInterval   = "SLSKD_BOT_POLL_INTERVAL"
	EnvMetricsListen     = "SLSKD_BOT_METRICS_LISTEN"
)

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored; a malformed file is an error.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with any non-empty environment variables.
func (cfg *Config) ApplyEnv() {
	cfg.applyEnv(os.LookupEnv)
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvDiscordToken, &cfg.Discord.Token)
	str(EnvSlskdURL, &cfg.Slskd.URL)
	str(EnvSlskdAPIKey, &cfg.Slskd.APIKey)
	str(EnvNavidromeURL, &cfg.Navidrome.URL)
	str(EnvNavidromeUser, &cfg.Navidrome.User)
	str(EnvNavidromePassword, &cfg.Navidrome.Password)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvMetricsListen, &cfg.Metrics.Listen)

	if v, ok := lookup(EnvMonitorInterval); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Monitor.PollIntervalSeconds = n
		}
	}
}
