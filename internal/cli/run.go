package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/daemon"
	"github.com/slskdbot/slskd-bot/internal/discord"
	"github.com/slskdbot/slskd-bot/internal/http"
	"github.com/slskdbot/slskd-bot/internal/metrics"
	"github.com/slskdbot/slskd-bot/internal/navidrome"
	"github.com/slskdbot/slskd-bot/internal/notify"
)

// gaugeInterval is how often the tracking gauges are refreshed.
const gaugeInterval = 15 * time.Second

// newRunCmd creates the 'run' command.
func newRunCmd() *cobra.Command {
	var (
		pollInterval  time.Duration
		metricsListen string
		noNotify      bool
		noProbe       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Discord bot and the download monitor",
		Long: `Connect to Discord, answer commands and watch slskd for finished downloads.

Chat commands (default prefix "!"):
  !search <query>    Search the Soulseek network
  !dl <number>       Queue a result from your last search
  !progress          Show incoming transfers

Every poll interval the monitor compares the downloads queued through the
bot with slskd's transfer list. Finished downloads are announced in the
channel they were requested from, and Navidrome is asked to rescan once per
pass when anything finished.

Examples:
  # Run with the config file and environment
  slskd-bot run

  # Poll every 10 seconds and expose Prometheus metrics
  slskd-bot run --poll-interval 10s --metrics-listen :9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GetConfig()
			if err != nil {
				return err
			}
			if pollInterval > 0 {
				c.Monitor.PollIntervalSeconds = int(pollInterval / time.Second)
			}
			if metricsListen != "" {
				c.Metrics.Listen = metricsListen
			}
			if noNotify {
				c.Notifications.Enabled = false
			}
			if err := c.ValidateBot(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log := GetLogger()
			a, err := newApp(c, log)
			if err != nil {
				return err
			}
			defer a.Close()

			return runBot(GetContext(), a, !noProbe)
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Reconciliation interval (default from config, 30s)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "Track downloads without posting completion messages")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip the slskd connectivity check at startup")

	return cmd
}

// runBot wires the Discord transport, the monitor, the result janitor and the
// metrics endpoint, and runs them until ctx is cancelled or one of them fails.
func runBot(ctx context.Context, a *app, probe bool) error {
	log := a.logger

	if err := a.scanner.Validate(); errors.Is(err, navidrome.ErrNoCredentials) {
		log.Warn().Msg("NAVIDROME_ADMIN_USER or NAVIDROME_ADMIN_PASSWORD not set. Library scans are disabled.")
	}

	if probe {
		bot.Probe(ctx, a.client, http.DefaultConfig(), log.Component("probe"))
	}

	session, err := discord.NewSession(a.cfg.Discord.Token)
	if err != nil {
		return err
	}

	notifier := notify.NewNotifier(discord.NewSink(session), a.cfg.Notifications.Enabled, log.Component("notify"))
	monitor := daemon.NewMonitor(a.client, a.store, notifier, a.scanner, a.bus, log.Component("monitor"))
	d, err := daemon.New(monitor, &daemon.Config{PollInterval: a.cfg.MonitorInterval()}, log.Component("daemon"))
	if err != nil {
		return err
	}
	handler := discord.NewHandler(session, a.svc, a.cfg.Discord.CommandPrefix, log.Component("discord"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return handler.Run(gctx, session)
	})

	g.Go(func() error {
		if err := d.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		d.Stop()
		return nil
	})

	g.Go(func() error {
		return a.svc.RunJanitor(gctx, constants.SessionSweepInterval, handler.Expire)
	})

	observer := metrics.NewObserver(a.bus)
	g.Go(func() error {
		observer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		refreshGauges(gctx, a)
		return nil
	})

	if a.cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, a.cfg.Metrics.Listen, log.Component("metrics"))
		})
	}

	log.Info().Msg("Bot running. Press Ctrl+C to stop.")
	err = g.Wait()

	st := d.Status()
	log.Info().
		Int("passes", st.Passes).
		Int("completed", st.TotalCompleted).
		Int("vanished", st.TotalVanished).
		Int("scans", st.TotalScans).
		Msg("Bot stopped")
	return err
}

// refreshGauges copies store and session sizes into the metrics gauges until
// ctx is done.
func refreshGauges(ctx context.Context, a *app) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		st := a.store.Stats()
		metrics.SetTracked(st.Pending, st.Notified, st.Folders)
		metrics.SetSessions(a.sessions.Len())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
