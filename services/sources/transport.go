package sources

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	er "github.com/threatgate/threatgate/internal/errors"
)

const (
	defaultCallTimeout      = 30 * time.Second
	defaultTransientRetries = 2
)

// ValidateEndpoint parses and checks the configured base endpoint. Collection talks
// to external portals over TLS only; a plaintext scheme in configuration is an
// operator mistake to surface, not traffic to silently upgrade.
func ValidateEndpoint(source, endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return nil, er.NewConfigurationError(source, "endpoint is empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, er.NewConfigurationError(source, "endpoint is not a valid URL: "+err.Error())
	}
	if u.Scheme != "https" {
		return nil, er.NewConfigurationError(source, "endpoint scheme must be https, got "+u.Scheme)
	}
	if u.Host == "" {
		return nil, er.NewConfigurationError(source, "endpoint host is empty")
	}

	return u, nil
}

// NewHTTPClient returns the client adapters use for portal calls: bounded timeouts
// everywhere and TLS enforced at the transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   4,
		},
	}
}

// DoWithRetry issues the request, retrying transient transport failures a bounded
// number of times. Non-2xx responses are returned to the caller untouched; only
// connection-level errors count as transient.
func DoWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error), retries int) (*http.Response, error) {
	if retries < 0 {
		retries = defaultTransientRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, er.NewTransientNetworkError(ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, er.NewTransientNetworkError(lastErr)
}
