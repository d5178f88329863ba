// Package metrics exposes Prometheus metrics for the bot.
package metrics

import (
	"context"
	"errors"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slskdbot/slskd-bot/internal/events"
	"github.com/slskdbot/slskd-bot/internal/logging"
)

var (
	// Search metrics
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slskd_bot_searches_total",
			Help: "Total searches started",
		},
		[]string{"status"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slskd_bot_search_duration_seconds",
			Help:    "Time from search start to the final results view",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60},
		},
	)

	searchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slskd_bot_search_results",
			Help:    "Number of result rows per search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	// Download metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slskd_bot_downloads_total",
			Help: "Tracked downloads by outcome",
		},
		[]string{"outcome"},
	)

	foldersCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slskd_bot_folders_completed_total",
			Help: "Folder groups whose every file completed",
		},
	)

	// Reconciliation metrics
	passesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slskd_bot_reconcile_passes_total",
			Help: "Reconciliation passes by result",
		},
		[]string{"result"},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slskd_bot_reconcile_pass_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	notifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slskd_bot_notification_failures_total",
			Help: "Completed downloads whose notification could not be delivered",
		},
	)

	// Library scan metrics
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slskd_bot_library_scans_total",
			Help: "Navidrome scan requests by status",
		},
		[]string{"status"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slskd_bot_library_scan_duration_seconds",
			Help:    "Navidrome scan request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// State gauges
	trackedDownloads = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slskd_bot_tracked_downloads",
			Help: "Downloads currently tracked, by notification state",
		},
		[]string{"state"},
	)

	trackedFolders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slskd_bot_tracked_folders",
			Help: "Folder groups currently tracked",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slskd_bot_result_sessions",
			Help: "Open search result views",
		},
	)

	// Event bus health
	observedBus atomic.Pointer[events.EventBus]

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "slskd_bot_events_dropped_total",
			Help: "Events not delivered because a subscriber was full",
		},
		func() float64 { return float64(observedBus.Load().Dropped()) },
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() nethttp.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordSearch records a finished search.
func RecordSearch(results int, d time.Duration, err error) {
	searchesTotal.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	searchDuration.Observe(d.Seconds())
	searchResults.Observe(float64(results))
}

// RecordDownload records a download outcome: queued, completed or vanished.
func RecordDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// RecordFolderCompleted records a completed folder group.
func RecordFolderCompleted() {
	foldersCompletedTotal.Inc()
}

// RecordPass records a reconciliation pass.
func RecordPass(e *events.PassEvent) {
	switch {
	case e.Skipped:
		passesTotal.WithLabelValues("skipped").Inc()
		return
	case e.Err != nil:
		passesTotal.WithLabelValues("error").Inc()
	default:
		passesTotal.WithLabelValues("ok").Inc()
	}
	passDuration.Observe(e.Duration.Seconds())
	notifyFailuresTotal.Add(float64(e.Failed))
}

// RecordScan records a library scan request.
func RecordScan(d time.Duration, err error) {
	scansTotal.WithLabelValues(status(err)).Inc()
	scanDuration.Observe(d.Seconds())
}

// SetTracked updates the tracking gauges.
func SetTracked(pending, notified, folders int) {
	trackedDownloads.WithLabelValues("pending").Set(float64(pending))
	trackedDownloads.WithLabelValues("notified").Set(float64(notified))
	trackedFolders.Set(float64(folders))
}

// SetSessions updates the open result view gauge.
func SetSessions(n int) {
	activeSessions.Set(float64(n))
}

// Observer turns bus events into metrics.
type Observer struct {
	bus *events.EventBus
	ch  <-chan events.Event
}

// NewObserver subscribes to bus right away, so nothing published after it
// returns is missed. The bus also backs the dropped-events counter.
func NewObserver(bus *events.EventBus) *Observer {
	observedBus.Store(bus)
	return &Observer{bus: bus, ch: bus.SubscribeAll()}
}

// Run records events until ctx is done or the bus closes. On cancellation
// the subscription is released.
func (o *Observer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.bus.Unsubscribe(o.ch)
			return
		case e, ok := <-o.ch:
			if !ok {
				return
			}
			record(e)
		}
	}
}

func record(e events.Event) {
	switch ev := e.(type) {
	case *events.SearchEvent:
		RecordSearch(ev.Results, ev.Duration, ev.Err)
	case *events.DownloadEvent:
		switch ev.Type() {
		case events.EventDownloadQueued:
			RecordDownload("queued")
		case events.EventDownloadCompleted:
			RecordDownload("completed")
		case events.EventDownloadVanished:
			RecordDownload("vanished")
		}
	case *events.FolderEvent:
		RecordFolderCompleted()
	case *events.PassEvent:
		RecordPass(ev)
	case *events.ScanEvent:
		RecordScan(ev.Duration, ev.Err)
	}
}

// Serve runs the metrics endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
