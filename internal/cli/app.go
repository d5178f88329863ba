package cli

import (
	"fmt"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/events"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/navidrome"
	"github.com/slskdbot/slskd-bot/internal/results"
	"github.com/slskdbot/slskd-bot/internal/slskd"
	"github.com/slskdbot/slskd-bot/internal/tracking"
)

// app holds the collaborators shared by the bot and the terminal commands.
type app struct {
	cfg      *config.Config
	client   *slskd.Client
	scanner  *navidrome.Scanner
	store    *tracking.Store
	sessions *results.Sessions
	bus      *events.EventBus
	svc      *bot.Service
	logger   *logging.Logger
}

// newApp validates cfg and builds the slskd client, the Navidrome scanner and
// the bot service around a fresh tracking store.
func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := slskd.NewClient(cfg.Slskd, cfg.Proxy, logger.Component("slskd"))
	if err != nil {
		return nil, fmt.Errorf("failed to create slskd client: %w", err)
	}

	scanner, err := navidrome.NewScanner(cfg.Navidrome, cfg.Proxy, logger.Component("navidrome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create navidrome scanner: %w", err)
	}

	a := &app{
		cfg:      cfg,
		client:   client,
		scanner:  scanner,
		store:    tracking.NewStore(),
		sessions: results.NewSessions(cfg.ViewTimeout()),
		bus:      events.NewEventBus(constants.EventBusDefaultBuffer),
		logger:   logger,
	}
	a.svc = bot.NewService(client, client, a.store, a.sessions, a.bus, bot.Options{
		PollAttempts: cfg.Search.PollAttempts,
		PollInterval: cfg.SearchPollInterval(),
		PageSize:     cfg.Search.PageSize,
	}, logger.Component("bot"))

	return a, nil
}

// Close releases the event bus.
func (a *app) Close() {
	a.bus.Close()
}
