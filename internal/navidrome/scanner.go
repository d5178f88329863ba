// Package navidrome triggers library rescans on a Navidrome server.
package navidrome

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/http"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/version"
)

// ErrNoCredentials is returned by Validate when no admin user or
// password is configured. TriggerScan itself treats it as a no-op.
var ErrNoCredentials = errors.New("navidrome admin credentials not set")

// StatusError is returned when Navidrome rejects the scan request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("navidrome scan failed: status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Scanner posts scan requests to Navidrome's native API.
type Scanner struct {
	httpClient *nethttp.Client
	baseURL    string
	user       string
	password   string
	timeout    time.Duration
	logger     *logging.Logger
}

// NewScanner creates a scanner from configuration.
func NewScanner(cfg config.NavidromeConfig, proxy config.ProxyConfig, logger *logging.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	httpClient, err := http.NewAPIClient(proxy, 0, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = constants.ScanTimeout
	}

	return &Scanner{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/"),
		user:       cfg.User,
		password:   cfg.Password,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Validate reports ErrNoCredentials when scans would be skipped.
func (s *Scanner) Validate() error {
	if s.user == "" || s.password == "" {
		return ErrNoCredentials
	}
	return nil
}

// TriggerScan asks Navidrome to rescan its library. Without credentials it
// logs a warning and returns nil.
func (s *Scanner) TriggerScan(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		s.logger.Warn().Msg("NAVIDROME_ADMIN_USER or NAVIDROME_ADMIN_PASSWORD not set. Skipping Navidrome scan.")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	scanURL := s.baseURL + "/api/v1/scan"
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, scanURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create scan request: %w", err)
	}
	req.SetBasicAuth(s.user, s.password)
	req.Header.Set("User-Agent", version.UserAgent())

	s.logger.Info().Msg("Triggering Navidrome library scan...")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out triggering Navidrome scan at %s: %w", scanURL, err)
		}
		return fmt.Errorf("could not connect to Navidrome at %s: %w", scanURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	s.logger.Info().Msg("Navidrome scan triggered successfully.")
	return nil
}
