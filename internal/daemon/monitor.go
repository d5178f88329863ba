package daemon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/events"
	"github.com/slskdbot/slskd-bot/internal/keys"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/notify"
	"github.com/slskdbot/slskd-bot/internal/slskd"
	"github.com/slskdbot/slskd-bot/internal/tracking"
)

// TransferLister fetches the remote transfer list.
type TransferLister interface {
	ListDownloads(ctx context.Context) ([]slskd.TransferUser, error)
}

// Scanner triggers a library rescan.
type Scanner interface {
	TriggerScan(ctx context.Context) error
}

// PassResult summarises one reconciliation pass.
type PassResult struct {
	// Skipped is set when nothing was tracked and no request was made.
	Skipped bool
	// Err is the transfer list fetch error that aborted the pass, if any.
	Err error

	Observed         int // incoming transfers seen
	Completed        int // downloads newly marked notified
	Vanished         int // downloads dropped because slskd no longer lists them
	FoldersCompleted int
	Failed           int // entries whose notification failed

	Scanned bool
	ScanErr error

	Duration time.Duration
}

// Monitor reconciles tracked downloads against slskd's transfer list.
type Monitor struct {
	transfers TransferLister
	store     *tracking.Store
	notifier  *notify.Notifier
	scanner   Scanner
	bus       *events.EventBus
	logger    *logging.Logger
}

// NewMonitor creates a new monitor. scanner and bus may be nil.
func NewMonitor(transfers TransferLister, store *tracking.Store, notifier *notify.Notifier, scanner Scanner, bus *events.EventBus, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		transfers: transfers,
		store:     store,
		notifier:  notifier,
		scanner:   scanner,
		bus:       bus,
		logger:    logger,
	}
}

// observation is the per-pass classification of remote transfers.
type observation struct {
	completed map[string]struct{}
	active    map[string]struct{}
}

// isCompleted reports whether a transfer finished successfully. slskd states
// are flag lists such as "Completed, Succeeded"; when the state is ambiguous a
// fully transferred file still counts.
func isCompleted(t slskd.Transfer) bool {
	var completed, succeeded, other bool
	for _, part := range strings.Split(t.State, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "completed":
			completed = true
		case "succeeded":
			succeeded = true
		case "":
		default:
			other = true
		}
	}
	if completed && (succeeded || !other) {
		return true
	}
	return t.BytesRemaining == 0 && t.PercentComplete >= constants.CompletePercentThreshold
}

func observe(users []slskd.TransferUser) observation {
	obs := observation{
		completed: make(map[string]struct{}),
		active:    make(map[string]struct{}),
	}
	for _, u := range users {
		for _, dir := range u.Directories {
			for _, t := range dir.Files {
				if !t.IsDownload() {
					continue
				}
				key := keys.TransferKey(u.Username, t.Filename)
				if isCompleted(t) {
					obs.completed[key] = struct{}{}
				} else {
					obs.active[key] = struct{}{}
				}
			}
		}
	}
	return obs
}

// Reconcile performs one pass: fetch the transfer list, notify newly
// completed downloads, drop vanished ones, and trigger at most one rescan.
func (m *Monitor) Reconcile(ctx context.Context) PassResult {
	start := time.Now()
	res := m.reconcile(ctx)
	res.Duration = time.Since(start)

	m.bus.PublishPass(events.PassEvent{
		Skipped:   res.Skipped,
		Completed: res.Completed,
		Vanished:  res.Vanished,
		Failed:    res.Failed,
		Scanned:   res.Scanned,
		Duration:  res.Duration,
		Err:       res.Err,
	})
	return res
}

func (m *Monitor) reconcile(ctx context.Context) PassResult {
	var res PassResult

	if m.store.Len() == 0 {
		res.Skipped = true
		return res
	}

	users, err := m.transfers.ListDownloads(ctx)
	if err == nil && users == nil {
		err = fmt.Errorf("transfer list returned no data")
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to fetch transfer list, skipping pass")
		res.Err = err
		return res
	}

	obs := observe(users)
	res.Observed = len(obs.completed) + len(obs.active)

	needsScan := false
	for _, d := range m.store.Pending() {
		if _, ok := obs.completed[d.Key]; ok {
			transitioned, folderDone, err := m.deliver(ctx, d)
			if transitioned {
				res.Completed++
				needsScan = true
			}
			if folderDone {
				res.FoldersCompleted++
			}
			if err != nil {
				res.Failed++
			}
			continue
		}

		if _, ok := obs.active[d.Key]; ok {
			continue
		}

		if !m.store.RemoveDownload(d.Key, d.Seq) {
			continue
		}
		m.logger.Info().Str("key", d.Key).Msg("Removing untracked download")
		res.Vanished++
		m.bus.PublishDownload(events.EventDownloadVanished, d.Key, d.Filename, d.FolderID, d.RequesterID)
		if d.FolderID != "" && m.shrinkFolder(ctx, d.FolderID) {
			res.FoldersCompleted++
		}
	}

	if needsScan && m.scanner != nil {
		res.Scanned = true
		scanStart := time.Now()
		res.ScanErr = m.scanner.TriggerScan(ctx)
		m.bus.PublishScan(time.Since(scanStart), res.ScanErr)
		if res.ScanErr != nil {
			m.logger.Error().Err(res.ScanErr).Msg("Library scan failed")
		}
	}

	m.logger.Debug().
		Int("completed", res.Completed).
		Int("active", len(obs.active)).
		Int("vanished", res.Vanished).
		Int("failed", res.Failed).
		Bool("scanned", res.Scanned).
		Msg("Reconciliation pass finished")

	return res
}

// deliver notifies the requester of one completed download and advances its
// folder group. The recipient is resolved before the entry is marked, so a
// resolution failure leaves it pending for the next pass. Send failures are
// logged and not retried. A panic is recovered and reported as an error.
func (m *Monitor) deliver(ctx context.Context, d tracking.Download) (transitioned, folderDone bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic notifying %s: %v", d.Key, r)
			m.logger.Error().Str("key", d.Key).Interface("panic", r).Msg("Recovered while delivering notification")
		}
	}()

	recipient, err := m.notifier.Resolve(ctx, d.RequesterID, d.ChannelID)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", d.Key).Msg("Could not find user/channel for completed download")
		return false, false, err
	}

	// Resolve the folder's recipient up front too; the member is counted
	// even if this fails, otherwise the folder could never complete.
	var (
		group         tracking.FolderGroup
		folderTarget  notify.Recipient
		folderTargetE error
	)
	if d.FolderID != "" {
		var ok bool
		if group, ok = m.store.Folder(d.FolderID); ok {
			if group.RequesterID == d.RequesterID && group.ChannelID == d.ChannelID {
				folderTarget = recipient
			} else {
				folderTarget, folderTargetE = m.notifier.Resolve(ctx, group.RequesterID, group.ChannelID)
			}
		}
	}

	if !m.store.MarkNotified(d.Key) {
		return false, false, nil
	}
	transitioned = true
	m.bus.PublishDownload(events.EventDownloadCompleted, d.Key, d.Filename, d.FolderID, d.RequesterID)
	m.logger.Info().Str("key", d.Key).Str("requester", d.RequesterID).Msg("Download complete")

	if sendErr := m.notifier.DownloadComplete(ctx, recipient, d.Filename); sendErr != nil {
		m.logger.Error().Err(sendErr).Str("key", d.Key).Msg("Failed to send download completion notice")
		err = sendErr
	}

	if d.FolderID == "" {
		return transitioned, false, err
	}

	completed, total, complete := m.store.IncrementFolderCompletion(d.FolderID)
	m.logger.Debug().Str("folder_id", d.FolderID).Int("completed", completed).Int("total", total).Msg("Folder progress")
	if !complete {
		m.dropIfOrphaned(d.FolderID)
		return transitioned, false, err
	}

	m.bus.PublishFolderCompleted(d.FolderID, group.Name, total)
	if folderTargetE != nil {
		m.logger.Warn().Err(folderTargetE).Str("folder_id", d.FolderID).Msg("Could not find user/channel for completed folder")
		return transitioned, true, folderTargetE
	}
	if sendErr := m.notifier.FolderComplete(ctx, folderTarget, group.Name, total); sendErr != nil {
		m.logger.Error().Err(sendErr).Str("folder_id", d.FolderID).Msg("Failed to send folder completion notice")
		err = sendErr
	}
	return transitioned, true, err
}

// shrinkFolder removes a vanished member from its folder group. When every
// remaining member has already finished, the folder message is sent now and
// true is returned.
func (m *Monitor) shrinkFolder(ctx context.Context, id string) bool {
	group, complete := m.store.ShrinkFolder(id)
	if !complete {
		m.dropIfOrphaned(id)
		return false
	}

	m.bus.PublishFolderCompleted(id, group.Name, group.Completed)
	r, err := m.notifier.Resolve(ctx, group.RequesterID, group.ChannelID)
	if err != nil {
		m.logger.Warn().Err(err).Str("folder_id", id).Msg("Could not find user/channel for completed folder")
		return true
	}
	if err := m.notifier.FolderComplete(ctx, r, group.Name, group.Completed); err != nil {
		m.logger.Error().Err(err).Str("folder_id", id).Msg("Failed to send folder completion notice")
	}
	return true
}

func (m *Monitor) dropIfOrphaned(id string) {
	if m.store.RemoveFolderIfOrphaned(id) {
		m.logger.Info().Str("folder_id", id).Msg("Dropping folder group with no remaining downloads")
	}
}
