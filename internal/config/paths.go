package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/slskdbot/slskd-bot/internal/pathutil"
)

// ConfigDirectory returns the directory holding bot.conf and the default .env.
//   - Windows: %APPDATA%\slskd-bot
//   - Unix: ~/.config/slskd-bot
func ConfigDirectory() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		return filepath.Join(appData, "slskd-bot"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "slskd-bot"), nil
}

// LogDirectory returns the default directory for rotated log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\slskd-bot\logs
//   - Unix: ~/.config/slskd-bot/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "slskd-bot-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "slskd-bot", "logs")
	}

	dir, err := ConfigDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), "slskd-bot-logs")
	}
	return filepath.Join(dir, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// LogFilePath resolves the [logging] file setting. A bare file name such as
// "bot.log" is placed in LogDirectory; other paths are made absolute.
// An empty setting disables file logging and returns "".
func (cfg *Config) LogFilePath() (string, error) {
	file := cfg.Logging.File
	if file == "" {
		return "", nil
	}
	if filepath.Base(file) != file {
		return pathutil.ResolveAbsolutePath(file)
	}
	if err := EnsureLogDirectory(); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return filepath.Join(LogDirectory(), file), nil
}
