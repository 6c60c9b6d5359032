package connectx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mintelligence/connectx-go/internal/transport"
	"github.com/mintelligence/connectx-go/internal/validation"
)

// Client is the ConnectX SDK client. It owns exactly one session; construct
// one per application and pass it to the components that need it.
type Client struct {
	transport  *transport.Transport
	config     *clientConfig
	log        zerolog.Logger
	metrics    *metrics
	session    *session
	dispatcher *dispatcher
	info       map[string]any
	knownID    atomic.Pointer[string]

	fetches singleflight.Group

	// fetchMu guards the context shared by callers of the current UnknownID request.
	fetchMu      sync.Mutex
	fetchCtx     context.Context
	fetchCancel  context.CancelFunc
	fetchWaiters int

	baseCtx   context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewClient creates a new ConnectX client. The client is not usable for
// outbound calls until Initialize succeeds.
func NewClient(opts ...Option) (*Client, error) {
	config := newDefaultConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	httpClient := config.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.timeout,
		}
	}

	userAgent := fmt.Sprintf("connectx-go/%s", Version)
	if config.userAgent != "" {
		userAgent = userAgent + " " + config.userAgent
	}

	info := DefaultClientInfo()
	if config.clientInfo != nil {
		info = *config.clientInfo
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	client := &Client{
		transport: &transport.Transport{
			BaseURL:    config.baseURL,
			HTTPClient: httpClient,
			UserAgent:  userAgent,
		},
		config:  config,
		log:     config.logger.With().Str("component", "connectx").Logger(),
		session: newSession(),
		info:    info.fields(userAgent),
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	client.dispatcher = newDispatcher(client, config.queueSize)
	client.metrics = newMetrics(client.dispatcher.queueLen)
	if config.registerer != nil {
		if err := client.metrics.register(config.registerer); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	client.dispatcher.start()

	return client, nil
}

// KnownID returns the customer key value of the last Identify the backend
// accepted, or an empty string when none has been delivered yet.
func (c *Client) KnownID() string {
	if id := c.knownID.Load(); id != nil {
		return *id
	}
	return ""
}

// Flush waits until every fire-and-forget call queued before it has been
// delivered or dropped.
func (c *Client) Flush(ctx context.Context) error {
	return c.dispatcher.Flush(ctx)
}

// Close gracefully shuts down the client, delivering pending calls first.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.dispatcher.Stop(context.Background())
		c.cancel()
	})
	return err
}

func (c *Client) isClosed() bool {
	return c.closed.Load()
}

// clientData returns a fresh copy of the device context block.
func (c *Client) clientData() map[string]any {
	out := make(map[string]any, len(c.info)+4)
	for k, v := range c.info {
		out[k] = v
	}
	return out
}

// parseError converts an HTTP error response to an APIError.
func (c *Client) parseError(resp *transport.Response) error {
	errResp := transport.ParseError(resp)
	if errResp != nil {
		code := errResp.Error.Code
		if code == "" {
			code = codeForStatus(resp.StatusCode)
		}
		return &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       code,
			Message:    errResp.Error.Message,
			RequestID:  resp.RequestID,
		}
	}

	return &APIError{
		HTTPStatus: resp.StatusCode,
		Code:       codeForStatus(resp.StatusCode),
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(resp.Body)),
		RequestID:  resp.RequestID,
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status >= 500:
		return ErrCodeInternalError
	default:
		return "unknown_error"
	}
}

// toValidationError converts an internal validation failure to the public type.
func toValidationError(err error) error {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Field: fe.Field, Message: fe.Message}
	}
	return err
}
