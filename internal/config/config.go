// Package config provides configuration management for slskd-bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/slskdbot/slskd-bot/internal/constants"
)

// Config represents the bot configuration.
//
// Config file location:
//   - Windows: %APPDATA%\slskd-bot\bot.conf
//   - Unix: ~/.config/slskd-bot/bot.conf
//
// INI format:
//
//	[discord]
//	token = <bot token>
//	command_prefix = !
//
//	[slskd]
//	url = http://localhost:5030
//	api_key = <slskd api key>
//	retry_max = 3
//
//	[navidrome]
//	url = http://navidrome:4533
//	user = admin
//	password = secret
//	timeout_seconds = 30
//
//	[monitor]
//	poll_interval_seconds = 30
//
//	[search]
//	poll_attempts = 20
//	poll_interval_seconds = 1
//	page_size = 10
//	view_timeout_seconds = 300
//
//	[notifications]
//	enabled = true
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//
//	[logging]
//	level = info
//	file =
//	json = false
//
//	[metrics]
//	listen = :9464
//
// Values from the environment (see ApplyEnv) override the file; command line
// flags override both.
type Config struct {
	Discord       DiscordConfig
	Slskd         SlskdConfig
	Navidrome     NavidromeConfig
	Monitor       MonitorConfig
	Search        SearchConfig
	Notifications NotificationConfig
	Proxy         ProxyConfig
	Logging       LoggingConfig
	Metrics       MetricsConfig
}

// DiscordConfig contains the chat transport settings.
type DiscordConfig struct {
	// Token is the Discord bot token. Required to run the bot.
	Token string `ini:"token"`

	// CommandPrefix prefixes message commands (!search, !dl, !progress).
	// Default: "!"
	CommandPrefix string `ini:"command_prefix"`
}

// SlskdConfig contains the slskd API settings.
type SlskdConfig struct {
	// URL is the slskd base URL, e.g. http://localhost:5030
	URL string `ini:"url"`

	// APIKey is sent in the X-API-Key header.
	APIKey string `ini:"api_key"`

	// RetryMax is the number of retries on connection errors and 5xx responses.
	// Minimum: 0, Maximum: 10, Default: 3
	RetryMax int `ini:"retry_max"`
}

// NavidromeConfig contains the library rescan settings. When User or
// Password is empty, scans are skipped.
type NavidromeConfig struct {
	URL            string `ini:"url"`
	User           string `ini:"user"`
	Password       string `ini:"password"`
	TimeoutSeconds int    `ini:"timeout_seconds"`
}

// MonitorConfig contains reconciliation loop settings.
type MonitorConfig struct {
	// PollIntervalSeconds is how often the transfer list is reconciled.
	// Minimum: 5, Maximum: 3600, Default: 30
	PollIntervalSeconds int `ini:"poll_interval_seconds"`
}

// SearchConfig contains search flow and result view settings.
type SearchConfig struct {
	PollAttempts        int `ini:"poll_attempts"`
	PollIntervalSeconds int `ini:"poll_interval_seconds"`
	PageSize            int `ini:"page_size"`
	ViewTimeoutSeconds  int `ini:"view_timeout_seconds"`
}

// NotificationConfig contains completion message settings.
type NotificationConfig struct {
	// Enabled indicates whether completion messages are posted.
	// Default: true
	Enabled bool `ini:"enabled"`
}

// ProxyConfig configures the outbound HTTP proxy used for slskd and Navidrome.
type ProxyConfig struct {
	// Mode is one of no-proxy, system, basic, ntlm.
	Mode     string `ini:"mode"`
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
	NoProxy  string `ini:"no_proxy"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level string `ini:"level"`
	File  string `ini:"file"`
	JSON  bool   `ini:"json"`
}

// MetricsConfig contains the Prometheus endpoint settings. An empty Listen
// address disables the endpoint.
type MetricsConfig struct {
	Listen string `ini:"listen"`
}

// Config validation errors
var (
	ErrMissingDiscordToken   = errors.New("discord token is required")
	ErrMissingSlskdURL       = errors.New("slskd url is required")
	ErrMissingSlskdAPIKey    = errors.New("slskd api_key is required")
	ErrInvalidRetryMax       = errors.New("slskd retry_max must be between 0 and 10")
	ErrInvalidPollInterval   = errors.New("monitor poll_interval_seconds must be between 5 and 3600")
	ErrInvalidSearchAttempts = errors.New("search poll_attempts must be between 1 and 120")
	ErrInvalidSearchInterval = errors.New("search poll_interval_seconds must be between 1 and 60")
	ErrInvalidPageSize       = errors.New("search page_size must be between 1 and 25")
	ErrInvalidViewTimeout    = errors.New("search view_timeout_seconds must be between 30 and 3600")
	ErrInvalidScanTimeout    = errors.New("navidrome timeout_seconds must be between 1 and 300")
	ErrUnsupportedProxyMode  = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost      = errors.New("proxy host is required for basic and ntlm modes")
)

// DefaultConfigPath returns the default path for the bot.conf file.
//   - Windows: %APPDATA%\slskd-bot\bot.conf
//   - Unix: ~/.config/slskd-bot/bot.conf
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bot.conf"), nil
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			CommandPrefix: "!",
		},
		Slskd: SlskdConfig{
			URL:      "http://localhost:5030",
			RetryMax: constants.SlskdRetryMax,
		},
		Navidrome: NavidromeConfig{
			URL:            "http://navidrome:4533",
			TimeoutSeconds: int(constants.ScanTimeout / time.Second),
		},
		Monitor: MonitorConfig{
			PollIntervalSeconds: int(constants.MonitorPollInterval / time.Second),
		},
		Search: SearchConfig{
			PollAttempts:        constants.SearchPollAttempts,
			PollIntervalSeconds: int(constants.SearchPollInterval / time.Second),
			PageSize:            constants.ResultsPageSize,
			ViewTimeoutSeconds:  int(constants.ResultViewTimeout / time.Second),
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
		Proxy: ProxyConfig{
			Mode: "no-proxy",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the bot.conf file.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil // Defaults if we can't determine path
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}

	discord := iniFile.Section("discord")
	cfg.Discord.Token = discord.Key("token").String()
	cfg.Discord.CommandPrefix = discord.Key("command_prefix").MustString(cfg.Discord.CommandPrefix)

	slskd := iniFile.Section("slskd")
	cfg.Slskd.URL = slskd.Key("url").MustString(cfg.Slskd.URL)
	cfg.Slskd.APIKey = slskd.Key("api_key").String()
	cfg.Slskd.RetryMax = slskd.Key("retry_max").MustInt(cfg.Slskd.RetryMax)

	navidrome := iniFile.Section("navidrome")
	cfg.Navidrome.URL = navidrome.Key("url").MustString(cfg.Navidrome.URL)
	cfg.Navidrome.User = navidrome.Key("user").String()
	cfg.Navidrome.Password = navidrome.Key("password").String()
	cfg.Navidrome.TimeoutSeconds = navidrome.Key("timeout_seconds").MustInt(cfg.Navidrome.TimeoutSeconds)

	monitor := iniFile.Section("monitor")
	cfg.Monitor.PollIntervalSeconds = monitor.Key("poll_interval_seconds").MustInt(cfg.Monitor.PollIntervalSeconds)

	search := iniFile.Section("search")
	cfg.Search.PollAttempts = search.Key("poll_attempts").MustInt(cfg.Search.PollAttempts)
	cfg.Search.PollIntervalSeconds = search.Key("poll_interval_seconds").MustInt(cfg.Search.PollIntervalSeconds)
	cfg.Search.PageSize = search.Key("page_size").MustInt(cfg.Search.PageSize)
	cfg.Search.ViewTimeoutSeconds = search.Key("view_timeout_seconds").MustInt(cfg.Search.ViewTimeoutSeconds)

	cfg.Notifications.Enabled = iniFile.Section("notifications").Key("enabled").MustBool(true)

	proxy := iniFile.Section("proxy")
	cfg.Proxy.Mode = proxy.Key("mode").MustString(cfg.Proxy.Mode)
	cfg.Proxy.Host = proxy.Key("host").String()
	cfg.Proxy.Port = proxy.Key("port").MustInt(0)
	cfg.Proxy.User = proxy.Key("user").String()
	cfg.Proxy.Password = proxy.Key("password").String()
	cfg.Proxy.NoProxy = proxy.Key("no_proxy").String()

	logging := iniFile.Section("logging")
	cfg.Logging.Level = logging.Key("level").MustString(cfg.Logging.Level)
	cfg.Logging.File = logging.Key("file").String()
	cfg.Logging.JSON = logging.Key("json").MustBool(false)

	cfg.Metrics.Listen = iniFile.Section("metrics").Key("listen").String()

	return cfg, nil
}

// SaveConfig saves configuration to the bot.conf file.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist. Secrets are written too, so
// the file is created with 0600 permissions.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"discord", [][2]string{
			{"token", cfg.Discord.Token},
			{"command_prefix", cfg.Discord.CommandPrefix},
		}},
		{"slskd", [][2]string{
			{"url", cfg.Slskd.URL},
			{"api_key", cfg.Slskd.APIKey},
			{"retry_max", fmt.Sprintf("%d", cfg.Slskd.RetryMax)},
		}},
		{"navidrome", [][2]string{
			{"url", cfg.Navidrome.URL},
			{"user", cfg.Navidrome.User},
			{"password", cfg.Navidrome.Password},
			{"timeout_seconds", fmt.Sprintf("%d", cfg.Navidrome.TimeoutSeconds)},
		}},
		{"monitor", [][2]string{
			{"poll_interval_seconds", fmt.Sprintf("%d", cfg.Monitor.PollIntervalSeconds)},
		}},
		{"search", [][2]string{
			{"poll_attempts", fmt.Sprintf("%d", cfg.Search.PollAttempts)},
			{"poll_interval_seconds", fmt.Sprintf("%d", cfg.Search.PollIntervalSeconds)},
			{"page_size", fmt.Sprintf("%d", cfg.Search.PageSize)},
			{"view_timeout_seconds", fmt.Sprintf("%d", cfg.Search.ViewTimeoutSeconds)},
		}},
		{"notifications", [][2]string{
			{"enabled", fmt.Sprintf("%t", cfg.Notifications.Enabled)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.Proxy.Mode},
			{"host", cfg.Proxy.Host},
			{"port", fmt.Sprintf("%d", cfg.Proxy.Port)},
			{"user", cfg.Proxy.User},
			{"password", cfg.Proxy.Password},
			{"no_proxy", cfg.Proxy.NoProxy},
		}},
		{"logging", [][2]string{
			{"level", cfg.Logging.Level},
			{"file", cfg.Logging.File},
			{"json", fmt.Sprintf("%t", cfg.Logging.JSON)},
		}},
		{"metrics", [][2]string{
			{"listen", cfg.Metrics.Listen},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the settings needed by every command (slskd access and the
// numeric ranges). The Discord token is checked separately by ValidateBot,
// since CLI-only commands run without it.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Slskd.URL) == "" {
		return ErrMissingSlskdURL
	}
	if strings.TrimSpace(cfg.Slskd.APIKey) == "" {
		return ErrMissingSlskdAPIKey
	}
	if cfg.Slskd.RetryMax < 0 || cfg.Slskd.RetryMax > 10 {
		return ErrInvalidRetryMax
	}
	if cfg.Monitor.PollIntervalSeconds < 5 || cfg.Monitor.PollIntervalSeconds > 3600 {
		return ErrInvalidPollInterval
	}
	if cfg.Search.PollAttempts < 1 || cfg.Search.PollAttempts > 120 {
		return ErrInvalidSearchAttempts
	}
	if cfg.Search.PollIntervalSeconds < 1 || cfg.Search.PollIntervalSeconds > 60 {
		return ErrInvalidSearchInterval
	}
	if cfg.Search.PageSize < 1 || cfg.Search.PageSize > 25 {
		return ErrInvalidPageSize
	}
	if cfg.Search.ViewTimeoutSeconds < 30 || cfg.Search.ViewTimeoutSeconds > 3600 {
		return ErrInvalidViewTimeout
	}
	if cfg.Navidrome.TimeoutSeconds < 1 || cfg.Navidrome.TimeoutSeconds > 300 {
		return ErrInvalidScanTimeout
	}

	switch strings.ToLower(cfg.Proxy.Mode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.Proxy.Host) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrUnsupportedProxyMode
	}

	return nil
}

// ValidateBot runs Validate and additionally requires the Discord token.
func (cfg *Config) ValidateBot() error {
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return ErrMissingDiscordToken
	}
	return cfg.Validate()
}

// ScanEnabled reports whether Navidrome credentials are configured.
func (cfg *Config) ScanEnabled() bool {
	return cfg.Navidrome.User != "" && cfg.Navidrome.Password != ""
}

// MonitorInterval returns the reconciliation period.
func (cfg *Config) MonitorInterval() time.Duration {
	return time.Duration(cfg.Monitor.PollIntervalSeconds) * time.Second
}

// SearchPollInterval returns the delay between search state polls.
func (cfg *Config) SearchPollInterval() time.Duration {
	return time.Duration(cfg.Search.PollIntervalSeconds) * time.Second
}

// ViewTimeout returns the idle timeout of a result view.
func (cfg *Config) ViewTimeout() time.Duration {
	return time.Duration(cfg.Search.ViewTimeoutSeconds) * time.Second
}

// ScanTimeout returns the bound on a Navidrome scan request.
func (cfg *Config) ScanTimeout() time.Duration {
	return time.Duration(cfg.Navidrome.TimeoutSeconds) * time.Second
}

// Redacted returns a copy with secrets masked, for display.
func (cfg *Config) Redacted() *Config {
	c := *cfg
	c.Discord.Token = mask(c.Discord.Token)
	c.Slskd.APIKey = mask(c.Slskd.APIKey)
	c.Navidrome.Password = mask(c.Navidrome.Password)
	c.Proxy.Password = mask(c.Proxy.Password)
	return &c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
