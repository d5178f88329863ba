// Package bot implements the chat-independent flows of the bot: searching,
// queueing downloads from a result set, reporting transfer progress and the
// startup connectivity probe. Chat transports call into a Service.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/events"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/results"
	"github.com/slskdbot/slskd-bot/internal/slskd"
	"github.com/slskdbot/slskd-bot/internal/tracking"
)

var (
	// ErrSearchFailed is returned when slskd refuses to start a search.
	ErrSearchFailed = errors.New("failed to start search")

	// ErrNoResults is returned by Download when the user has no active result set.
	ErrNoResults = errors.New("no active search results")

	// ErrEnqueueFailed is returned when slskd refuses to queue a download.
	ErrEnqueueFailed = errors.New("failed to queue download")
)

// SearchAPI is the subset of the slskd client used by searches.
type SearchAPI interface {
	StartSearch(ctx context.Context, query string) (string, error)
	SearchState(ctx context.Context, id string) (*slskd.SearchState, error)
	SearchResponses(ctx context.Context, id string) ([]slskd.SearchResponse, error)
}

// TransferAPI is the subset of the slskd client used by downloads.
type TransferAPI interface {
	Enqueue(ctx context.Context, username string, files []slskd.File) error
	ListDownloads(ctx context.Context) ([]slskd.TransferUser, error)
}

// Options tunes the search flow.
type Options struct {
	PollAttempts int
	PollInterval time.Duration
	PageSize     int
}

// DefaultOptions returns the reference search timing.
func DefaultOptions() Options {
	return Options{
		PollAttempts: constants.SearchPollAttempts,
		PollInterval: constants.SearchPollInterval,
		PageSize:     constants.ResultsPageSize,
	}
}

// Service wires the slskd client, the tracking store and the per-user
// result sessions together.
type Service struct {
	search    SearchAPI
	transfers TransferAPI
	store     *tracking.Store
	sessions  *results.Sessions
	bus       *events.EventBus
	opts      Options
	logger    *logging.Logger
}

// NewService creates a Service. bus may be nil.
func NewService(search SearchAPI, transfers TransferAPI, store *tracking.Store, sessions *results.Sessions, bus *events.EventBus, opts Options, logger *logging.Logger) *Service {
	def := DefaultOptions()
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = def.PollAttempts
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		search:    search,
		transfers: transfers,
		store:     store,
		sessions:  sessions,
		bus:       bus,
		opts:      opts,
		logger:    logger,
	}
}

// Sessions returns the per-user result sessions.
func (s *Service) Sessions() *results.Sessions {
	return s.sessions
}

// Store returns the tracking store.
func (s *Service) Store() *tracking.Store {
	return s.store
}
