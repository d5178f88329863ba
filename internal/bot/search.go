package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slskdbot/slskd-bot/internal/results"
)

// Search starts a search and polls it until slskd reports completion or the
// attempt budget runs out. onUpdate, if set, is called each time a poll
// changes the number of results so a view can reveal them progressively.
// Poll failures count as "no data" for that attempt. The returned set may be
// empty; it is not registered as the user's active set.
func (s *Service) Search(ctx context.Context, query string, onUpdate func(*results.Set)) (*results.Set, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrSearchFailed)
	}

	start := time.Now()
	id, err := s.search.StartSearch(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("Failed to start search")
		s.bus.PublishSearch("", query, 0, time.Since(start), err)
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	log := s.logger.With().Str("search_id", id).Logger()
	log.Info().Str("query", query).Msg("Search started")

	set := results.NewSet(query, nil, results.WithPageSize(s.opts.PageSize))

	timer := time.NewTimer(s.opts.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= s.opts.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			s.bus.PublishSearch(id, query, set.Len(), time.Since(start), ctx.Err())
			return set, ctx.Err()
		case <-timer.C:
		}

		state, err := s.search.SearchState(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Failed to poll search state")
		}

		responses, err := s.search.SearchResponses(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Failed to fetch search responses")
		} else if set.Refresh(responses) && onUpdate != nil {
			onUpdate(set)
		}

		if state != nil && state.IsComplete {
			log.Info().Int("attempt", attempt).Msg("Search complete")
			break
		}
		timer.Reset(s.opts.PollInterval)
	}

	log.Info().Int("results", set.Len()).Dur("elapsed", time.Since(start)).Msg("Search finished")
	s.bus.PublishSearch(id, query, set.Len(), time.Since(start), nil)
	return set, nil
}

// Activate makes set the user's active result set, replacing any previous one.
func (s *Service) Activate(userID string, set *results.Set) {
	s.sessions.Put(userID, set)
}
