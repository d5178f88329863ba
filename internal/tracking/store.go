// Package tracking holds the in-memory record of downloads the bot has queued
// and the folder groups they belong to.
//
// Entries are never persisted. A notified download stays in the store for the
// life of the process so that a completed transfer is announced only once.
package tracking

import (
	"sort"
	"sync"
	"time"
)

// Download is a file the bot queued on behalf of a user.
type Download struct {
	Key         string
	RequesterID string
	ChannelID   string
	Filename    string
	SearchPath  string
	Notified    bool
	FolderID    string // empty for standalone files
	QueuedAt    time.Time
	Seq         uint64 // increases with every registration
}

// FolderGroup counts completions of the files queued from one remote folder.
type FolderGroup struct {
	ID          string
	RequesterID string
	ChannelID   string
	Name        string
	Total       int
	Completed   int
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Downloads int
	Pending   int
	Notified  int
	Folders   int
}

// Store is safe for concurrent use. Each method is a single critical section;
// callers never hold the lock across network calls.
type Store struct {
	mu        sync.Mutex
	downloads map[string]*Download
	folders   map[string]*FolderGroup
	seq       uint64
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		downloads: make(map[string]*Download),
		folders:   make(map[string]*FolderGroup),
		now:       time.Now,
	}
}

// RegisterDownload starts tracking key. An existing entry, notified or not,
// is replaced by a fresh unnotified one.
func (s *Store) RegisterDownload(key, requesterID, channelID, filename, searchPath, folderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.downloads[key] = &Download{
		Key:         key,
		RequesterID: requesterID,
		ChannelID:   channelID,
		Filename:    filename,
		SearchPath:  searchPath,
		FolderID:    folderID,
		QueuedAt:    s.now(),
		Seq:         s.seq,
	}
}

// RegisterFolder starts a folder group with no completed members, replacing
// any group with the same id.
func (s *Store) RegisterFolder(id, requesterID, channelID, name string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[id] = &FolderGroup{
		ID:          id,
		RequesterID: requesterID,
		ChannelID:   channelID,
		Name:        name,
		Total:       total,
	}
}

// MarkNotified flips key to notified. It returns true only for the call that
// made the transition; unknown or already-notified keys return false.
func (s *Store) MarkNotified(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.downloads[key]
	if !ok || d.Notified {
		return false
	}
	d.Notified = true
	return true
}

// IncrementFolderCompletion records one more finished member of folder id.
// When the group reaches its total it is removed and complete is true.
// An unknown id returns zeros.
func (s *Store) IncrementFolderCompletion(id string) (completed, total int, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.folders[id]
	if !ok {
		return 0, 0, false
	}
	g.Completed++
	if g.Completed >= g.Total {
		delete(s.folders, id)
		return g.Completed, g.Total, true
	}
	return g.Completed, g.Total, false
}

// RemoveDownload stops tracking key only if it still holds the unnotified
// registration seq. A download re-queued under the same key since the caller
// looked is left alone.
func (s *Store) RemoveDownload(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.downloads[key]
	if !ok || d.Notified || d.Seq != seq {
		return false
	}
	delete(s.downloads, key)
	return true
}

// ShrinkFolder takes one member that will never finish out of folder id.
// If the members already finished now make up the whole group, it is removed
// and returned with complete set.
func (s *Store) ShrinkFolder(id string) (group FolderGroup, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.folders[id]
	if !ok {
		return FolderGroup{}, false
	}
	if g.Total > 0 {
		g.Total--
	}
	if g.Completed > 0 && g.Completed >= g.Total {
		delete(s.folders, id)
		return *g, true
	}
	return *g, false
}

// RemoveFolderIfOrphaned deletes folder id when no unnotified download
// references it any more, since it could then never complete.
func (s *Store) RemoveFolderIfOrphaned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return false
	}
	for _, d := range s.downloads {
		if d.FolderID == id && !d.Notified {
			return false
		}
	}
	delete(s.folders, id)
	return true
}

// Len returns the number of tracked downloads, notified or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.downloads)
}

// Pending returns copies of the unnotified downloads sorted by key.
func (s *Store) Pending() []Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Download, 0, len(s.downloads))
	for _, d := range s.downloads {
		if !d.Notified {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns a copy of the download tracked under key.
func (s *Store) Get(key string) (Download, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.downloads[key]
	if !ok {
		return Download{}, false
	}
	return *d, true
}

// Folder returns a copy of folder group id.
func (s *Store) Folder(id string) (FolderGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.folders[id]
	if !ok {
		return FolderGroup{}, false
	}
	return *g, true
}

// Stats summarises the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Downloads: len(s.downloads), Folders: len(s.folders)}
	for _, d := range s.downloads {
		if d.Notified {
			st.Notified++
		} else {
			st.Pending++
		}
	}
	return st
}
