package bot

import (
	"context"
	"fmt"

	"github.com/slskdbot/slskd-bot/internal/events"
	"github.com/slskdbot/slskd-bot/internal/keys"
	"github.com/slskdbot/slskd-bot/internal/pathutil"
	"github.com/slskdbot/slskd-bot/internal/results"
	"github.com/slskdbot/slskd-bot/internal/slskd"
)

// Queued describes a download accepted by slskd and now tracked.
type Queued struct {
	Item     results.Item
	Keys     []string
	FolderID string
}

// Download queues result number n (1-based) from the user's active set and
// registers it for completion tracking. Folder items queue every member file
// and register a folder group whose total is the number of distinct member
// keys.
func (s *Service) Download(ctx context.Context, userID, channelID string, n int) (Queued, error) {
	set, ok := s.sessions.Get(userID)
	if !ok {
		return Queued{}, ErrNoResults
	}
	s.sessions.Touch(userID)

	item, err := set.Select(n)
	if err != nil {
		return Queued{}, err
	}

	files := item.Descriptors()
	if len(files) == 0 {
		return Queued{}, fmt.Errorf("%w: %s has no files", ErrEnqueueFailed, item.Name)
	}

	if err := s.transfers.Enqueue(ctx, item.Peer, files); err != nil {
		s.logger.Error().Err(err).Str("peer", item.Peer).Str("path", item.Path).Msg("Enqueue failed")
		return Queued{}, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	q := Queued{Item: item}
	switch item.Kind {
	case results.KindFolder:
		q.FolderID = keys.FolderID(item.Peer, item.Path)
		seen := make(map[string]struct{}, len(files))
		var members []slskd.File
		for _, f := range files {
			key := keys.TransferKey(item.Peer, f.Filename)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			q.Keys = append(q.Keys, key)
			members = append(members, f)
		}
		s.store.RegisterFolder(q.FolderID, userID, channelID, item.Name, len(q.Keys))
		for i, f := range members {
			s.store.RegisterDownload(q.Keys[i], userID, channelID, pathutil.Base(f.Filename), f.Filename, q.FolderID)
		}
	default:
		key := keys.TransferKey(item.Peer, item.Path)
		q.Keys = []string{key}
		s.store.RegisterDownload(key, userID, channelID, item.Name, item.Path, "")
	}

	for _, key := range q.Keys {
		s.bus.PublishDownload(events.EventDownloadQueued, key, item.Name, q.FolderID, userID)
	}

	s.logger.Info().
		Str("peer", item.Peer).
		Str("path", item.Path).
		Str("kind", item.Kind.String()).
		Int("files", len(q.Keys)).
		Msg("Download queued")

	return q, nil
}
