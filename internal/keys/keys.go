// Package keys derives the identities used to match locally queued downloads
// against the transfer list slskd reports.
//
// A transfer key is "peer:basename". Two files with the same basename from the
// same peer map to the same key; folder completion counting relies on there
// being exactly one key per basename, so this aliasing is kept on purpose.
package keys

import (
	"strings"

	"github.com/slskdbot/slskd-bot/internal/pathutil"
)

const unknownPeer = "unknown"

// TransferKey returns lower(peer) + ":" + lower(basename(path)).
func TransferKey(peer, path string) string {
	return peerPart(peer) + ":" + strings.ToLower(pathutil.Base(path))
}

// FolderID returns lower(peer) + ":" + lower(normalized directory).
func FolderID(peer, dir string) string {
	return peerPart(peer) + ":" + strings.ToLower(pathutil.Normalize(dir))
}

func peerPart(peer string) string {
	if peer == "" {
		return unknownPeer
	}
	return strings.ToLower(peer)
}
