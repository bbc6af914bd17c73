// Package http performs timed HTTP calls against the server under test.
//
// A Client wraps one pooled transport and is meant to be owned by a single
// worker, so keep-alive connections are reused across that worker's calls.
// An Executor pairs a Client with a prepared Request and turns every call
// into an Outcome; transport failures are reported in the Outcome, never
// returned as errors.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TransportConfig tunes the connection pool of a Client.
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultTransportConfig returns pool settings suited to a single worker.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Client represents an HTTP client with customizable options
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	timeout      time.Duration
	transport    TransportConfig
	roundTripper http.RoundTripper
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		headers:   make(map[string]string),
		timeout:   30 * time.Second,
		transport: DefaultTransportConfig(),
	}

	for _, option := range options {
		option(client)
	}

	rt := client.roundTripper
	if rt == nil {
		rt = newTransport(client.transport)
	}
	// The per-call deadline comes from the request context, see Do.
	client.httpClient = &http.Client{Transport: rt}

	return client
}

// WithTimeout bounds each call made by the client. Zero disables the bound.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeader adds a header sent with every call unless the request sets it
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithTransportConfig replaces the connection pool settings
func WithTransportConfig(cfg TransportConfig) ClientOption {
	return func(c *Client) {
		c.transport = cfg
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		c.transport.InsecureSkipVerify = skip
	}
}

// WithRoundTripper makes the client use rt instead of its own transport
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.roundTripper = rt
	}
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Do executes req, drains the response body and closes it.
//
// The returned error covers every transport-level failure, including a
// timeout and a body that cannot be read to the end.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := req.Build(ctx)
	if err != nil {
		return nil, err
	}
	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	n, err := io.Copy(io.Discard, httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		BodySize:   n,
	}, nil
}

// CloseIdleConnections closes pooled connections that are not in use.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func newTransport(cfg TransportConfig) *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		ForceAttemptHTTP2:   true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}
	return transport
}
