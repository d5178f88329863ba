package discord

import (
	"sync"

	"github.com/slskdbot/slskd-bot/internal/results"
)

// view is a posted result message with paging buttons.
type view struct {
	messageID string
	channelID string
	userID    string
	set       *results.Set
}

// views indexes live result messages by message id. Each user has at most
// one live view; posting a new one retires the previous.
type views struct {
	mu     sync.Mutex
	byID   map[string]*view
	byUser map[string]*view
}

func newViews() *views {
	return &views{
		byID:   make(map[string]*view),
		byUser: make(map[string]*view),
	}
}

// add registers v and returns the view it replaced, if any.
func (vs *views) add(v *view) *view {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	old := vs.byUser[v.userID]
	if old != nil {
		delete(vs.byID, old.messageID)
	}
	vs.byID[v.messageID] = v
	vs.byUser[v.userID] = v
	return old
}

func (vs *views) get(messageID string) (*view, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v, ok := vs.byID[messageID]
	return v, ok
}

func (vs *views) remove(v *view) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.byID[v.messageID] == v {
		delete(vs.byID, v.messageID)
	}
	if vs.byUser[v.userID] == v {
		delete(vs.byUser, v.userID)
	}
}

// forSet returns the live view showing set.
func (vs *views) forSet(userID string, set *results.Set) (*view, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v, ok := vs.byUser[userID]
	if !ok || v.set != set {
		return nil, false
	}
	return v, true
}

func (vs *views) len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.byID)
}
