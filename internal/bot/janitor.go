package bot

import (
	"context"
	"time"

	"github.com/slskdbot/slskd-bot/internal/results"
)

// RunJanitor drops result sets idle past the view timeout every interval
// until ctx is done. onExpire, if set, is called for each dropped set so the
// transport can close its view.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration, onExpire func(results.Expired)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.sweep(now, onExpire)
		}
	}
}

func (s *Service) sweep(now time.Time, onExpire func(results.Expired)) int {
	expired := s.sessions.Sweep(now)
	for _, e := range expired {
		s.logger.Debug().Str("user_id", e.UserID).Str("query", e.Set.Query()).Msg("Search results expired")
		if onExpire != nil {
			onExpire(e)
		}
	}
	return len(expired)
}
