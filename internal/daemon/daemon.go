// Package daemon runs the periodic reconciliation of tracked downloads
// against slskd and delivers completion notifications.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/logging"
)

// Config holds daemon configuration.
type Config struct {
	// PollInterval is how often the transfer list is reconciled
	PollInterval time.Duration
}

// DefaultConfig returns a daemon configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{PollInterval: constants.MonitorPollInterval}
}

// Status is a snapshot of the daemon's counters.
type Status struct {
	Running        bool
	Passes         int
	LastPass       time.Time
	LastResult     PassResult
	TotalCompleted int
	TotalVanished  int
	TotalScans     int
}

// Daemon drives a Monitor on a fixed interval.
type Daemon struct {
	cfg     *Config
	monitor *Monitor
	logger  *logging.Logger

	// passMu serializes passes so a manual RunOnce never overlaps a tick.
	passMu sync.Mutex

	// Shutdown coordination
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.RWMutex
	status   Status
}

// New creates a new daemon instance.
func New(monitor *Monitor, cfg *Config, logger *logging.Logger) (*Daemon, error) {
	if monitor == nil {
		return nil, fmt.Errorf("monitor is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		cfg:     cfg,
		monitor: monitor,
		logger:  logger,
	}, nil
}

// Start begins the polling loop. The first pass runs on the loop goroutine
// right away; later passes follow the configured interval.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.status.Running = true
	d.stopChan = make(chan struct{})
	stop := d.stopChan
	d.mu.Unlock()

	d.logger.Info().
		Str("poll_interval", d.cfg.PollInterval.String()).
		Msg("Download monitor starting")

	d.wg.Add(1)
	go d.pollLoop(ctx, stop)

	return nil
}

// Stop signals the loop to exit and waits for an in-flight pass to finish.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.status.Running = false
	close(d.stopChan)
	d.mu.Unlock()

	d.logger.Info().Msg("Download monitor stopping")
	d.wg.Wait()
	d.logger.Info().Msg("Download monitor stopped")
}

// IsRunning returns whether the daemon is currently running.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Status returns a copy of the current counters.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// RunOnce performs a single pass outside the ticker.
func (d *Daemon) RunOnce(ctx context.Context) PassResult {
	d.passMu.Lock()
	defer d.passMu.Unlock()

	res := d.monitor.Reconcile(ctx)

	d.mu.Lock()
	d.status.Passes++
	d.status.LastPass = time.Now()
	d.status.LastResult = res
	d.status.TotalCompleted += res.Completed
	d.status.TotalVanished += res.Vanished
	if res.Scanned {
		d.status.TotalScans++
	}
	d.mu.Unlock()

	return res
}

func (d *Daemon) pollLoop(ctx context.Context, stop <-chan struct{}) {
	defer d.wg.Done()

	d.RunOnce(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Poll loop cancelled by context")
			return
		case <-stop:
			d.logger.Debug().Msg("Poll loop stopped")
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}
