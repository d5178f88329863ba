package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/slskdbot/slskd-bot/internal/pathutil"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("Expected CommandPrefix=!, got %q", cfg.Discord.CommandPrefix)
	}
	if cfg.Slskd.URL != "http://localhost:5030" {
		t.Errorf("Expected slskd URL default, got %s", cfg.Slskd.URL)
	}
	if cfg.Navidrome.URL != "http://navidrome:4533" {
		t.Errorf("Expected navidrome URL default, got %s", cfg.Navidrome.URL)
	}
	if cfg.Monitor.PollIntervalSeconds != 30 {
		t.Errorf("Expected PollIntervalSeconds=30, got %d", cfg.Monitor.PollIntervalSeconds)
	}
	if cfg.Search.PollAttempts != 20 || cfg.Search.PollIntervalSeconds != 1 {
		t.Errorf("Expected 20 attempts at 1s, got %d at %ds", cfg.Search.PollAttempts, cfg.Search.PollIntervalSeconds)
	}
	if cfg.Search.PageSize != 10 {
		t.Errorf("Expected PageSize=10, got %d", cfg.Search.PageSize)
	}
	if cfg.Search.ViewTimeoutSeconds != 300 {
		t.Errorf("Expected ViewTimeoutSeconds=300, got %d", cfg.Search.ViewTimeoutSeconds)
	}
	if !cfg.Notifications.Enabled {
		t.Error("Expected Notifications.Enabled=true")
	}
	if cfg.ScanEnabled() {
		t.Error("Expected scans disabled without credentials")
	}
}

func TestConfigLoadSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "bot.conf")

	cfg := NewConfig()
	cfg.Discord.Token = "discord-token"
	cfg.Slskd.URL = "http://slskd:5030"
	cfg.Slskd.APIKey = "key"
	cfg.Navidrome.User = "admin"
	cfg.Navidrome.Password = "pw"
	cfg.Monitor.PollIntervalSeconds = 60
	cfg.Search.PageSize = 5
	cfg.Notifications.Enabled = false
	cfg.Proxy.Mode = "basic"
	cfg.Proxy.Host = "proxy.local"
	cfg.Proxy.Port = 3128
	cfg.Logging.JSON = true
	cfg.Metrics.Listen = ":9464"

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configPath)
		if err != nil {
			t.Fatalf("Config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("Expected 0600 permissions, got %o", perm)
		}
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Discord.Token != "discord-token" {
		t.Errorf("Token mismatch: got %q", loaded.Discord.Token)
	}
	if loaded.Slskd.URL != "http://slskd:5030" || loaded.Slskd.APIKey != "key" {
		t.Errorf("Slskd mismatch: %+v", loaded.Slskd)
	}
	if !loaded.ScanEnabled() {
		t.Error("Expected scans enabled after round trip")
	}
	if loaded.Monitor.PollIntervalSeconds != 60 {
		t.Errorf("PollIntervalSeconds mismatch: got %d", loaded.Monitor.PollIntervalSeconds)
	}
	if loaded.Search.PageSize != 5 {
		t.Errorf("PageSize mismatch: got %d", loaded.Search.PageSize)
	}
	if loaded.Notifications.Enabled {
		t.Error("Expected Notifications.Enabled=false")
	}
	if loaded.Proxy.Mode != "basic" || loaded.Proxy.Host != "proxy.local" || loaded.Proxy.Port != 3128 {
		t.Errorf("Proxy mismatch: %+v", loaded.Proxy)
	}
	if !loaded.Logging.JSON || loaded.Metrics.Listen != ":9464" {
		t.Errorf("Logging/metrics mismatch: %+v %+v", loaded.Logging, loaded.Metrics)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if cfg.Monitor.PollIntervalSeconds != 30 {
		t.Errorf("Expected defaults, got %+v", cfg.Monitor)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.conf")
	content := "[slskd]\napi_key = abc\n\n[search]\npage_size = 7\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Slskd.APIKey != "abc" {
		t.Errorf("api_key = %q", cfg.Slskd.APIKey)
	}
	if cfg.Slskd.URL != "http://localhost:5030" {
		t.Errorf("url should keep default, got %q", cfg.Slskd.URL)
	}
	if cfg.Search.PageSize != 7 || cfg.Search.PollAttempts != 20 {
		t.Errorf("search = %+v", cfg.Search)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.Discord.Token = "t"
		cfg.Slskd.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing url", func(c *Config) { c.Slskd.URL = " " }, ErrMissingSlskdURL},
		{"missing api key", func(c *Config) { c.Slskd.APIKey = "" }, ErrMissingSlskdAPIKey},
		{"retry too high", func(c *Config) { c.Slskd.RetryMax = 11 }, ErrInvalidRetryMax},
		{"poll too low", func(c *Config) { c.Monitor.PollIntervalSeconds = 4 }, ErrInvalidPollInterval},
		{"poll too high", func(c *Config) { c.Monitor.PollIntervalSeconds = 3601 }, ErrInvalidPollInterval},
		{"zero attempts", func(c *Config) { c.Search.PollAttempts = 0 }, ErrInvalidSearchAttempts},
		{"zero search interval", func(c *Config) { c.Search.PollIntervalSeconds = 0 }, ErrInvalidSearchInterval},
		{"page size too big", func(c *Config) { c.Search.PageSize = 26 }, ErrInvalidPageSize},
		{"view timeout too short", func(c *Config) { c.Search.ViewTimeoutSeconds = 10 }, ErrInvalidViewTimeout},
		{"scan timeout zero", func(c *Config) { c.Navidrome.TimeoutSeconds = 0 }, ErrInvalidScanTimeout},
		{"unknown proxy mode", func(c *Config) { c.Proxy.Mode = "socks" }, ErrUnsupportedProxyMode},
		{"ntlm without host", func(c *Config) { c.Proxy.Mode = "ntlm" }, ErrMissingProxyHost},
		{"system proxy", func(c *Config) { c.Proxy.Mode = "system" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBotRequiresToken(t *testing.T) {
	cfg := NewConfig()
	cfg.Slskd.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if err := cfg.ValidateBot(); !errors.Is(err, ErrMissingDiscordToken) {
		t.Errorf("ValidateBot() = %v, want %v", err, ErrMissingDiscordToken)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDiscordToken:      "env-token",
		EnvSlskdURL:          " http://env:5030 ",
		EnvSlskdAPIKey:       "env-key",
		EnvNavidromeUser:     "nd-user",
		EnvNavidromePassword: "nd-pass",
		EnvMonitorInterval:   "45",
		EnvLogLevel:          "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewConfig()
	cfg.Logging.Level = "warn"
	cfg.applyEnv(lookup)

	if cfg.Discord.Token != "env-token" {
		t.Errorf("token = %q", cfg.Discord.Token)
	}
	if cfg.Slskd.URL != "http://env:5030" {
		t.Errorf("url = %q", cfg.Slskd.URL)
	}
	if cfg.Slskd.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.Slskd.APIKey)
	}
	if !cfg.ScanEnabled() {
		t.Error("expected navidrome credentials from env")
	}
	if cfg.Monitor.PollIntervalSeconds != 45 {
		t.Errorf("poll interval = %d", cfg.Monitor.PollIntervalSeconds)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("empty env var should not override, got %q", cfg.Logging.Level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SLSKD_BOT_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SLSKD_BOT_TEST_DOTENV_PRESET", "kept")
	if err := os.WriteFile(filepath.Join(dir, "second.env"), []byte("SLSKD_BOT_TEST_DOTENV_PRESET=overwritten\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env"), filepath.Join(dir, "second.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SLSKD_BOT_TEST_DOTENV") })

	if got := os.Getenv("SLSKD_BOT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("SLSKD_BOT_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("SLSKD_BOT_TEST_DOTENV_PRESET"); got != "kept" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func TestRedacted(t *testing.T) {
	cfg := NewConfig()
	cfg.Discord.Token = "abcdefgh"
	cfg.Slskd.APIKey = "xyz"

	r := cfg.Redacted()
	if r.Discord.Token != "ab****gh" {
		t.Errorf("token = %q", r.Discord.Token)
	}
	if r.Slskd.APIKey != "****" {
		t.Errorf("api key = %q", r.Slskd.APIKey)
	}
	if cfg.Discord.Token != "abcdefgh" {
		t.Error("Redacted modified the original")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if filepath.Base(path) != "bot.conf" {
		t.Errorf("unexpected config file name: %s", path)
	}
	if filepath.Base(filepath.Dir(path)) != "slskd-bot" {
		t.Errorf("unexpected config directory: %s", path)
	}
}

func TestLogFilePath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOCALAPPDATA", t.TempDir())

	cfg := NewConfig()
	if got, err := cfg.LogFilePath(); err != nil || got != "" {
		t.Errorf("empty setting = %q, %v", got, err)
	}

	explicit := filepath.Join(t.TempDir(), "logs", "bot.log")
	cfg.Logging.File = explicit
	want, _ := pathutil.ResolveAbsolutePath(explicit)
	if got, _ := cfg.LogFilePath(); got != want || filepath.Base(got) != "bot.log" {
		t.Errorf("explicit path = %q, want %q", got, want)
	}

	cfg.Logging.File = "bot.log"
	got, err := cfg.LogFilePath()
	if err != nil {
		t.Fatalf("LogFilePath() error = %v", err)
	}
	if got != filepath.Join(LogDirectory(), "bot.log") {
		t.Errorf("bare name = %q", got)
	}
	if _, err := os.Stat(LogDirectory()); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}
