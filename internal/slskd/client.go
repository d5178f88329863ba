// Package slskd is a client for the slskd REST API (searches, transfers and
// application state).
package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/http"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/ratelimit"
	"github.com/slskdbot/slskd-bot/internal/version"
)

const apiPrefix = "/api/v0"

// maxErrorBody bounds how much of an error response is kept in a StatusError.
const maxErrorBody = 512

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("slskd retry: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("slskd retry: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("slskd retry: " + msg)
}

// Client represents the slskd API client
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	apiKey     string
	limiter    *ratelimit.RateLimiter
	logger     *logging.Logger
	newID      func() string
}

// NewClient creates a new slskd client. Connection errors and 5xx responses
// are retried cfg.RetryMax times before surfacing.
func NewClient(cfg config.SlskdConfig, proxy config.ProxyConfig, logger *logging.Logger) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	httpClient, err := http.NewAPIClient(proxy, constants.HTTPRequestTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = constants.SlskdRetryWaitMin
	retryClient.RetryWaitMax = constants.SlskdRetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the final response back so callers see the real status.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		limiter:    ratelimit.NewRateLimiter(constants.SlskdRatePerSec, constants.SlskdBurstCapacity).WithLogger(logger),
		logger:     logger,
		newID:      uuid.NewString,
	}, nil
}

// BaseURL returns the configured slskd URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the API key header set.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Err(err).Msg("slskd request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// getJSON performs a GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	resp, err := c.doRequest(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *nethttp.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// StartSearch starts a text search and returns its id.
func (c *Client) StartSearch(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("start search failed: empty query")
	}

	id := c.newID()
	resp, err := c.doRequest(ctx, nethttp.MethodPost, "/searches", searchRequest{ID: id, SearchText: query})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusCreated {
		return "", statusError("start search", resp)
	}

	var state SearchState
	if err := json.NewDecoder(resp.Body).Decode(&state); err == nil && state.ID != "" {
		id = state.ID
	}

	c.logger.Info().Str("search_id", id).Str("query", query).Msg("Started search")
	return id, nil
}

// SearchState returns the current state of a search.
func (c *Client) SearchState(ctx context.Context, id string) (*SearchState, error) {
	var state SearchState
	if err := c.getJSON(ctx, "get search state", "/searches/"+url.PathEscape(id), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SearchResponses returns every peer response received so far.
func (c *Client) SearchResponses(ctx context.Context, id string) ([]SearchResponse, error) {
	var responses []SearchResponse
	if err := c.getJSON(ctx, "get search responses", "/searches/"+url.PathEscape(id)+"/responses", &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// Enqueue queues files from one peer for download.
func (c *Client) Enqueue(ctx context.Context, username string, files []File) error {
	if len(files) == 0 {
		return fmt.Errorf("enqueue failed: no files")
	}

	body := make([]enqueueRequest, 0, len(files))
	for _, f := range files {
		body = append(body, enqueueRequest{Filename: f.Filename, Size: f.Size})
	}

	resp, err := c.doRequest(ctx, nethttp.MethodPost, "/transfers/downloads/"+url.PathEscape(username), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("enqueue", resp)
	}
	return nil
}

// ListDownloads returns all download transfers, including removed ones, grouped by peer.
func (c *Client) ListDownloads(ctx context.Context) ([]TransferUser, error) {
	var users []TransferUser
	if err := c.getJSON(ctx, "list downloads", "/transfers/downloads?includeRemoved=true", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ApplicationState returns slskd's application state, including whether it is
// logged in to the Soulseek network.
func (c *Client) ApplicationState(ctx context.Context) (*ApplicationState, error) {
	var state ApplicationState
	if err := c.getJSON(ctx, "get application state", "/application", &state); err != nil {
		return nil, err
	}
	return &state, nil
}
