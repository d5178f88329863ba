// Package notify delivers download completion messages to the user who
// requested the download, through a chat Sink.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/slskdbot/slskd-bot/internal/logging"
)

// ErrUnresolved is wrapped by Resolve when the requester or the channel
// cannot be looked up. The download stays unnotified and is retried on the
// next pass.
var ErrUnresolved = errors.New("recipient could not be resolved")

// maxNameLen keeps messages well inside chat message limits.
const maxNameLen = 180

// User is a resolved chat user.
type User struct {
	ID      string
	Mention string
}

// Channel is a resolved chat channel.
type Channel struct {
	ID   string
	Name string
}

// Sink is the chat transport used for notifications.
type Sink interface {
	ResolveUser(ctx context.Context, id string) (User, error)
	ResolveChannel(ctx context.Context, id string) (Channel, error)
	Send(ctx context.Context, channelID, text string) error
}

// Recipient is where a notification goes.
type Recipient struct {
	User    User
	Channel Channel
}

// Notifier formats and sends completion messages.
type Notifier struct {
	sink    Sink
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex
}

// NewNotifier creates a notifier. A nil sink behaves as disabled.
func NewNotifier(sink Sink, enabled bool, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Notifier{
		sink:    sink,
		logger:  logger,
		enabled: enabled && sink != nil,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled && n.sink != nil
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Resolve looks up the requester and the channel. When notifications are
// disabled it returns an empty recipient and no error.
func (n *Notifier) Resolve(ctx context.Context, requesterID, channelID string) (Recipient, error) {
	if !n.IsEnabled() {
		return Recipient{}, nil
	}

	user, err := n.sink.ResolveUser(ctx, requesterID)
	if err != nil {
		return Recipient{}, fmt.Errorf("%w: user %s: %v", ErrUnresolved, requesterID, err)
	}
	channel, err := n.sink.ResolveChannel(ctx, channelID)
	if err != nil {
		return Recipient{}, fmt.Errorf("%w: channel %s: %v", ErrUnresolved, channelID, err)
	}
	return Recipient{User: user, Channel: channel}, nil
}

// DownloadComplete announces a finished file.
func (n *Notifier) DownloadComplete(ctx context.Context, r Recipient, filename string) error {
	return n.send(ctx, r, downloadMessage(r.User, filename))
}

// FolderComplete announces a finished folder.
func (n *Notifier) FolderComplete(ctx context.Context, r Recipient, name string, files int) error {
	return n.send(ctx, r, folderMessage(r.User, name, files))
}

func (n *Notifier) send(ctx context.Context, r Recipient, text string) error {
	if !n.IsEnabled() {
		return nil
	}
	if err := n.sink.Send(ctx, r.Channel.ID, text); err != nil {
		return fmt.Errorf("failed to send notification to channel %s: %w", r.Channel.ID, err)
	}
	return nil
}

func downloadMessage(u User, filename string) string {
	return fmt.Sprintf("%s Your download is complete: `%s`", mention(u), quote(filename))
}

func folderMessage(u User, name string, files int) string {
	noun := "files"
	if files == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%s Your folder download is complete: `%s` (%d %s)", mention(u), quote(name), files, noun)
}

func mention(u User) string {
	if u.Mention != "" {
		return u.Mention
	}
	return "<@" + u.ID + ">"
}

// quote makes s safe inside a single-backtick code span.
func quote(s string) string {
	return truncate(strings.ReplaceAll(s, "`", "'"), maxNameLen)
}

// truncate shortens a string to at most maxLen bytes, adding "..." if
// truncated. The cut never splits a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
