// Package constants holds the tuning values shared across slskd-bot.
package constants

import (
	"time"
)

// Reconciliation loop
const (
	// MonitorPollInterval - how often the transfer list is reconciled (30 seconds)
	MonitorPollInterval = 30 * time.Second

	// MinMonitorPollInterval - lower bound accepted from config / flags
	MinMonitorPollInterval = 5 * time.Second

	// MaxMonitorPollInterval - upper bound accepted from config / flags (1 hour)
	MaxMonitorPollInterval = time.Hour

	// CompletePercentThreshold - percent complete treated as finished when
	// slskd reports zero bytes remaining but an ambiguous state string
	CompletePercentThreshold = 99.9
)

// Search flow
const (
	// SearchPollAttempts - number of search state polls before giving up (20)
	SearchPollAttempts = 20

	// SearchPollInterval - delay between search state polls (1 second)
	SearchPollInterval = 1 * time.Second

	// ResultsPageSize - search results shown per page
	ResultsPageSize = 10

	// ResultViewTimeout - idle time after which a user's result set is dropped (5 minutes)
	ResultViewTimeout = 300 * time.Second

	// SessionSweepInterval - how often idle result sets are swept
	SessionSweepInterval = 30 * time.Second
)

// Rate limits
const (
	// SlskdRatePerSec - sustained request rate towards the slskd API
	SlskdRatePerSec = 10.0
	// SlskdBurstCapacity - requests allowed back to back before throttling
	SlskdBurstCapacity = 20.0
	// SearchRatePerSec - sustained chat searches per user (one every 10 seconds)
	SearchRatePerSec = 0.1
	// SearchBurstCapacity - searches a user may start back to back
	SearchBurstCapacity = 3.0
)

// Library rescan
const (
	// ScanTimeout - bound on the Navidrome scan request (30 seconds)
	ScanTimeout = 30 * time.Second
)

// Event bus buffering
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size for event channels
	EventBusMaxBuffer = 4096
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (15 seconds)
	HTTPTLSHandshakeTimeout = 15 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (10 seconds)
	HTTPDialTimeout = 10 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialed connections (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPRequestTimeout - overall bound on a single slskd API request (60 seconds)
	HTTPRequestTimeout = 60 * time.Second
)

// Retry configuration for the slskd API client and startup probe
const (
	// SlskdRetryMax - retries performed by the slskd client on 5xx / connection errors
	SlskdRetryMax = 3

	// SlskdRetryWaitMin - minimum wait between slskd retries
	SlskdRetryWaitMin = 500 * time.Millisecond

	// SlskdRetryWaitMax - maximum wait between slskd retries
	SlskdRetryWaitMax = 5 * time.Second

	// ProbeMaxRetries - attempts made by the startup connectivity probe
	ProbeMaxRetries = 5

	// ProbeInitialDelay - base backoff for the startup probe
	ProbeInitialDelay = 500 * time.Millisecond

	// ProbeMaxDelay - backoff cap for the startup probe
	ProbeMaxDelay = 10 * time.Second
)
