package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/torosent/dialogfire/internal/tracing"
)

// Option customizes the client returned by NewClient.
type Option func(*decorator)

// WithHeaders sets static headers on every outgoing request.
func WithHeaders(headers map[string]string) Option {
	return func(d *decorator) {
		for k, v := range headers {
			if k == "" {
				continue
			}
			d.headers.Set(k, v)
		}
	}
}

// WithTracePropagation injects W3C trace context into outgoing requests.
func WithTracePropagation(enabled bool) Option {
	return func(d *decorator) { d.propagate = enabled }
}

// decorator adds headers to requests before handing them to the pooled transport.
type decorator struct {
	base      http.RoundTripper
	headers   http.Header
	propagate bool
}

func (d *decorator) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(d.headers) == 0 && !d.propagate {
		return d.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for key, values := range d.headers {
		if clone.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			clone.Header.Add(key, v)
		}
	}
	if d.propagate {
		tracing.InjectHTTPHeaders(req.Context(), clone.Header)
	}
	return d.base.RoundTrip(clone)
}

// NewClient returns an HTTP client with a pooled transport sized for many
// concurrent chat sessions against one host.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = transport
	if len(opts) > 0 {
		d := &decorator{base: transport, headers: http.Header{}}
		for _, opt := range opts {
			opt(d)
		}
		rt = d
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

// Pooled returns the underlying *http.Transport of a client built by NewClient.
func Pooled(client *http.Client) (*http.Transport, bool) {
	switch rt := client.Transport.(type) {
	case *http.Transport:
		return rt, true
	case *decorator:
		t, ok := rt.base.(*http.Transport)
		return t, ok
	default:
		return nil, false
	}
}
