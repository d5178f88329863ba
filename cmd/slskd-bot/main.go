// slskd-bot - Discord bot and CLI for searching and downloading through slskd
package main

import (
	"os"

	"github.com/slskdbot/slskd-bot/internal/cli"
	"github.com/slskdbot/slskd-bot/internal/version"
)

// Version information, overridden with -ldflags at release time.
var (
	Version   = "v0.4.0"
	BuildTime = "2026-10-15"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
