package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"time"

	"golang.org/x/net/http2"

	"github.com/slskdbot/slskd-bot/internal/config"
	"github.com/slskdbot/slskd-bot/internal/logging"
)

// NewAPIClient returns the client shared by the slskd and Navidrome adapters.
//
// HTTP/2 is negotiated for https endpoints unless a proxy is active or
// DISABLE_HTTP2=true is set. Both services are usually reached over plain
// http inside a compose network, where this makes no difference.
func NewAPIClient(cfg config.ProxyConfig, timeout time.Duration, logger *logging.Logger) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg, timeout, logger)
	if err != nil {
		return nil, err
	}

	// NTLM wraps the transport; leave it as configured.
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || ProxyActive(cfg, os.Getenv) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return client, nil
}
