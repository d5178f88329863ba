// Package events is an in-process publish/subscribe bus for download
// lifecycle and reconciliation events.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/slskdbot/slskd-bot/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventSearchFinished    EventType = "search_finished"
	EventDownloadQueued    EventType = "download_queued"
	EventDownloadCompleted EventType = "download_completed"
	EventDownloadVanished  EventType = "download_vanished"
	EventFolderCompleted   EventType = "folder_completed"
	EventPassFinished      EventType = "pass_finished"
	EventScanFinished      EventType = "scan_finished"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// SearchEvent is published when a search flow stops polling.
type SearchEvent struct {
	BaseEvent
	SearchID string
	Query    string
	Results  int
	Duration time.Duration
	Err      error
}

// DownloadEvent describes one tracked download.
type DownloadEvent struct {
	BaseEvent
	Key         string
	Filename    string
	FolderID    string
	RequesterID string
}

// FolderEvent is published when every member of a folder has completed.
type FolderEvent struct {
	BaseEvent
	FolderID string
	Name     string
	Total    int
}

// PassEvent summarises one reconciliation pass.
type PassEvent struct {
	BaseEvent
	Skipped   bool // nothing tracked, no request made
	Completed int
	Vanished  int
	Failed    int
	Scanned   bool
	Duration  time.Duration
	Err       error
}

// ScanEvent reports a library rescan attempt.
type ScanEvent struct {
	BaseEvent
	Duration time.Duration
	Err      error
}

// EventBus fans events out to its subscribers. Every subscriber sees every
// event; slow subscribers lose events rather than block publishers.
type EventBus struct {
	mu         sync.RWMutex
	subs       []chan Event
	bufferSize int
	closed     bool
	dropped    atomic.Int64
}

// NewEventBus creates a bus whose subscriptions buffer bufferSize events.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{bufferSize: bufferSize}
}

// SubscribeAll returns a channel receiving every event published from now
// on. It is closed by Unsubscribe or Close; on a closed bus it is closed
// already.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, eb.bufferSize)
	if eb.closed {
		close(ch)
		return ch
	}
	eb.subs = append(eb.subs, ch)
	return ch
}

// Unsubscribe detaches ch and closes it. Unknown channels are ignored.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, sub := range eb.subs {
		if sub == ch {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (eb *EventBus) Dropped() int64 {
	if eb == nil {
		return 0
	}
	return eb.dropped.Load()
}

// Publish sends an event to all subscribers without blocking. Events for a
// full subscriber are dropped and counted. A nil bus is a no-op.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subs {
		select {
		case ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true
	for _, ch := range eb.subs {
		close(ch)
	}
	eb.subs = nil
}

// PublishDownload is a convenience method for publishing download events
func (eb *EventBus) PublishDownload(t EventType, key, filename, folderID, requesterID string) {
	eb.Publish(&DownloadEvent{
		BaseEvent:   newBase(t),
		Key:         key,
		Filename:    filename,
		FolderID:    folderID,
		RequesterID: requesterID,
	})
}

// PublishFolderCompleted is a convenience method for publishing folder completion
func (eb *EventBus) PublishFolderCompleted(folderID, name string, total int) {
	eb.Publish(&FolderEvent{
		BaseEvent: newBase(EventFolderCompleted),
		FolderID:  folderID,
		Name:      name,
		Total:     total,
	})
}

// PublishScan is a convenience method for publishing scan results
func (eb *EventBus) PublishScan(d time.Duration, err error) {
	eb.Publish(&ScanEvent{
		BaseEvent: newBase(EventScanFinished),
		Duration:  d,
		Err:       err,
	})
}

// PublishSearch is a convenience method for publishing search results
func (eb *EventBus) PublishSearch(searchID, query string, results int, d time.Duration, err error) {
	eb.Publish(&SearchEvent{
		BaseEvent: newBase(EventSearchFinished),
		SearchID:  searchID,
		Query:     query,
		Results:   results,
		Duration:  d,
		Err:       err,
	})
}

// PublishPass publishes a pass summary, stamping its type and time.
func (eb *EventBus) PublishPass(e PassEvent) {
	e.BaseEvent = newBase(EventPassFinished)
	eb.Publish(&e)
}
