package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/slskdbot/slskd-bot/internal/daemon"
	"github.com/slskdbot/slskd-bot/internal/notify"
)

// consoleSink delivers completion messages to the terminal.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) ResolveUser(_ context.Context, id string) (notify.User, error) {
	return notify.User{ID: id, Mention: "✓"}, nil
}

func (s *consoleSink) ResolveChannel(_ context.Context, id string) (notify.Channel, error) {
	return notify.Channel{ID: id, Name: id}, nil
}

func (s *consoleSink) Send(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, text)
	return err
}

// waitForDownloads reconciles the app's tracked downloads on the configured
// interval until none are pending or ctx is cancelled. Completion messages go
// to out and the library scan fires the same way it does in the bot.
func waitForDownloads(ctx context.Context, a *app, out io.Writer) error {
	notifier := notify.NewNotifier(newConsoleSink(out), true, a.logger.Component("notify"))
	monitor := daemon.NewMonitor(a.client, a.store, notifier, a.scanner, a.bus, a.logger.Component("monitor"))

	interval := a.cfg.MonitorInterval()
	fmt.Fprintf(out, "Waiting for downloads to finish (checking every %s, Ctrl+C to stop)...\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := monitor.Reconcile(ctx)
		if res.Err != nil {
			a.logger.Warn().Err(res.Err).Msg("Could not check transfers")
		}
		if res.Vanished > 0 {
			fmt.Fprintf(out, "%d download(s) disappeared from slskd\n", res.Vanished)
		}
		if a.store.Stats().Pending == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
