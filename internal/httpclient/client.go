// Package httpclient provides an HTTP client with middleware support.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request attempt.
const DefaultTimeout = 8 * time.Second

// Client is an HTTP client that supports middleware chaining.
type Client struct {
	base       *http.Client
	transport  http.RoundTripper
	tlsConfig  *tls.Config
	middleware []Middleware
}

// Middleware wraps an http.RoundTripper to add behavior.
// Middleware is applied in order: first middleware is outermost.
type Middleware func(http.RoundTripper) http.RoundTripper

// New creates a new HTTP client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		base: &http.Client{
			Timeout: DefaultTimeout,
		},
		middleware: []Middleware{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = c.base.Transport
	}
	if c.transport == nil {
		c.transport = newTransport(c.tlsConfig)
	}

	transport := c.transport

	// Apply middleware in reverse order so first middleware is outermost
	for i := len(c.middleware) - 1; i >= 0; i-- {
		transport = c.middleware[i](transport)
	}

	c.base.Transport = transport

	return c
}

// newTransport clones the default transport with connection limits suited
// to a handful of small devices.
func newTransport(tlsConfig *tls.Config) *http.Transport {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		transport = &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		}
	}

	transport = transport.Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 60 * time.Second
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}

	return transport
}

// Do executes an HTTP request using the configured middleware chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.base.Do(req)
}

// HTTPClient returns the underlying http.Client.
// This is useful when the client needs to be passed to code that expects *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.base
}

// CloseIdleConnections closes idle connections of the innermost transport,
// which middleware wrappers would otherwise hide.
func (c *Client) CloseIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if t, ok := c.transport.(closeIdler); ok {
		t.CloseIdleConnections()
	}
}
