package bot

import (
	"context"

	"github.com/slskdbot/slskd-bot/internal/http"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/slskd"
)

// StateAPI reports the slskd application state.
type StateAPI interface {
	ApplicationState(ctx context.Context) (*slskd.ApplicationState, error)
}

// ProbeStatus is the outcome of the startup probe.
type ProbeStatus int

const (
	ProbeUnreachable ProbeStatus = iota
	ProbeNotLoggedIn
	ProbeLoggedIn
)

func (p ProbeStatus) String() string {
	switch p {
	case ProbeLoggedIn:
		return "logged in"
	case ProbeNotLoggedIn:
		return "not logged in"
	default:
		return "unreachable"
	}
}

// Probe checks that slskd answers and is logged in to the network, retrying
// transient failures. It logs the outcome and never fails startup.
func Probe(ctx context.Context, api StateAPI, retry http.Config, logger *logging.Logger) (ProbeStatus, *slskd.ApplicationState) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, errType http.ErrorType) {
			logger.Debug().Err(err).Int("attempt", attempt).Str("error_type", http.ErrorTypeName(errType)).Msg("Retrying slskd probe")
		}
	}

	var state *slskd.ApplicationState
	err := http.ExecuteWithRetry(ctx, retry, func(ctx context.Context) error {
		s, err := api.ApplicationState(ctx)
		if err != nil {
			return err
		}
		state = s
		return nil
	})
	if err != nil || state == nil {
		logger.Error().Err(err).Msg("Failed to get a valid response from slskd on startup")
		return ProbeUnreachable, nil
	}

	if !state.Server.IsLoggedIn {
		logger.Warn().Str("server_state", state.Server.State).Msg("Connected to slskd, but it is NOT logged in to the network")
		return ProbeNotLoggedIn, state
	}

	logger.Info().
		Str("version", state.Version.Full).
		Str("username", state.User.Username).
		Msg("Connected to slskd and logged in")
	return ProbeLoggedIn, state
}
