package connectx

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL   = "https://backend.connect-x.tech/connectx/api"
	defaultTimeout   = 10 * time.Second
	defaultQueueSize = 1000
)

// HTTPDoer is an interface for HTTP operations (for testing).
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the Client.
type Option func(*clientConfig) error

// clientConfig holds internal configuration.
type clientConfig struct {
	baseURL    string
	httpClient HTTPDoer
	userAgent  string
	timeout    time.Duration
	queueSize  int
	logger     zerolog.Logger
	clientInfo *ClientInfo
	registerer prometheus.Registerer
	onDropped  func(err error)
}

// newDefaultConfig returns the default client configuration.
func newDefaultConfig() *clientConfig {
	return &clientConfig{
		baseURL:   defaultBaseURL,
		timeout:   defaultTimeout,
		queueSize: defaultQueueSize,
		logger:    zerolog.Nop(),
	}
}

// WithBaseURL sets a custom API base URL.
// Default: "https://backend.connect-x.tech/connectx/api"
func WithBaseURL(url string) Option {
	return func(c *clientConfig) error {
		if url == "" {
			return errors.New("base URL cannot be empty")
		}
		c.baseURL = strings.TrimSuffix(url, "/")
		return nil
	}
}

// WithEnv targets a named backend environment, e.g. "staging" resolves to
// https://backend-staging.connect-x.tech/connectx/api. An empty env keeps
// the production backend.
func WithEnv(env string) Option {
	return func(c *clientConfig) error {
		env = strings.TrimSpace(env)
		if env == "" {
			c.baseURL = defaultBaseURL
			return nil
		}
		if strings.ContainsAny(env, "/.: ") {
			return errors.New("env must be a bare environment name")
		}
		c.baseURL = "https://backend-" + env + ".connect-x.tech/connectx/api"
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client.
// Default: http.Client with configured timeout
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *clientConfig) error {
		if client == nil {
			return errors.New("HTTP client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// WithTimeout sets the request timeout.
// Default: 10 seconds
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithUserAgent sets a custom User-Agent suffix.
// The SDK will prepend its own identifier.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) error {
		c.userAgent = ua
		return nil
	}
}

// WithQueueSize sets how many fire-and-forget calls may wait for delivery.
// Calls beyond that are dropped with ErrQueueFull.
// Default: 1000
func WithQueueSize(n int) Option {
	return func(c *clientConfig) error {
		if n <= 0 {
			return errors.New("queue size must be positive")
		}
		c.queueSize = n
		return nil
	}
}

// WithLogger sets the logger used for dispatch and lifecycle diagnostics.
// Default: zerolog.Nop()
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

// WithClientInfo overrides the device context sent with tracking payloads.
// Default: DefaultClientInfo()
func WithClientInfo(info ClientInfo) Option {
	return func(c *clientConfig) error {
		c.clientInfo = &info
		return nil
	}
}

// WithMetrics registers the SDK's dispatch metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) error {
		if reg == nil {
			return errors.New("metrics registerer cannot be nil")
		}
		c.registerer = reg
		return nil
	}
}

// WithOnDropped sets a hook called for every fire-and-forget call that could
// not be delivered. The error is a *TransportError or ErrQueueFull.
//
// ErrQueueFull is reported on the goroutine that queued the call. Delivery
// failures are reported in order on a goroutine owned by the client, and
// Flush returns only after the hook has seen the failures it covers. The
// hook may call Close; calling Flush from it blocks until Flush's ctx ends.
func WithOnDropped(fn func(err error)) Option {
	return func(c *clientConfig) error {
		c.onDropped = fn
		return nil
	}
}
