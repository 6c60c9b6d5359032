package connectx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mintelligence/connectx-go/internal/transport"
	"github.com/mintelligence/connectx-go/internal/validation"
)

const generateCookiePath = "/webtracking/generateCookie"

// Credentials identify the tenant to the backend.
type Credentials struct {
	// Token is the tenant bearer token.
	Token string
	// OrganizationID is the organization the tenant belongs to.
	OrganizationID string
}

// SessionInfo is a read-only snapshot of the session state.
type SessionInfo struct {
	Initialized    bool
	OrganizationID string
	AnonymousID    string
}

// initCall is an in-flight Initialize that later callers wait on.
type initCall struct {
	creds Credentials
	done  chan struct{}
	err   error
}

// session holds the state established by Initialize. Fields other than
// ready are only read or written under mu, and are published together once
// initialization succeeds.
type session struct {
	mu          sync.Mutex
	initialized bool
	creds       Credentials
	anonymousID string
	inflight    *initCall
	ready       chan struct{}
}

func newSession() *session {
	return &session{ready: make(chan struct{})}
}

// snapshot returns the credentials and anonymous id of a ready session.
func (s *session) snapshot() (Credentials, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return Credentials{}, "", ErrNotInitialized
	}
	return s.creds, s.anonymousID, nil
}

// Initialize validates the credentials, resolves the anonymous id and opens
// the session for dependent calls.
//
// A second call with the same credentials returns nil without contacting the
// backend; a call with different credentials returns ErrAlreadyInitialized.
// Concurrent calls share one attempt. If the attempt fails the session stays
// uninitialized and Initialize may be called again.
func (c *Client) Initialize(ctx context.Context, creds Credentials) error {
	if err := validation.ValidateCredentials(creds.Token, creds.OrganizationID); err != nil {
		return &InitError{Err: toValidationError(err)}
	}
	if c.isClosed() {
		return ErrClosed
	}

	s := c.session
	s.mu.Lock()
	if s.initialized {
		same := s.creds == creds
		s.mu.Unlock()
		if same {
			return nil
		}
		return ErrAlreadyInitialized
	}
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		if call.creds != creds {
			return ErrAlreadyInitialized
		}
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return &InitError{Err: ctx.Err()}
		}
	}
	call := &initCall{creds: creds, done: make(chan struct{})}
	s.inflight = call
	s.mu.Unlock()

	anonymousID, err := c.resolveAnonymousID(ctx)

	s.mu.Lock()
	s.inflight = nil
	if err == nil {
		s.initialized = true
		s.creds = creds
		s.anonymousID = anonymousID
		close(s.ready)
	}
	s.mu.Unlock()

	call.err = err
	close(call.done)

	if err != nil {
		c.log.Error().Err(err).Str("op", "initialize").Msg("session initialization failed")
		return err
	}
	c.log.Info().
		Str("op", "initialize").
		Str("organize_id", creds.OrganizationID).
		Str("anonymous_id", anonymousID).
		Msg("session initialized")
	return nil
}

// InitializeAsync runs Initialize on its own goroutine and reports the result
// on the returned channel, which is closed afterwards.
func (c *Client) InitializeAsync(ctx context.Context, creds Credentials) <-chan error {
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- c.Initialize(ctx, creds)
		close(resultCh)
	}()
	return resultCh
}

// Ready returns a channel that is closed once Initialize has succeeded.
func (c *Client) Ready() <-chan struct{} {
	return c.session.ready
}

// WaitReady blocks until the session is initialized or ctx is done.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.session.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns a snapshot of the session state.
func (c *Client) Session() SessionInfo {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		Initialized:    s.initialized,
		OrganizationID: s.creds.OrganizationID,
		AnonymousID:    s.anonymousID,
	}
}

// resolveAnonymousID asks the backend for an anonymous id. A refusal or an
// empty answer falls back to a locally generated id; only a network failure
// fails initialization.
func (c *Client) resolveAnonymousID(ctx context.Context) (string, error) {
	id, err := c.fetchAnonymousID(ctx)
	if err == nil {
		return id, nil
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) || ctx.Err() != nil {
		return "", &InitError{Err: err}
	}

	local := uuid.NewString()
	c.log.Warn().
		Err(err).
		Str("op", "initialize").
		Str("anonymous_id", local).
		Msg("backend did not assign an anonymous id, using a local one")
	return local, nil
}

// fetchAnonymousID performs one generateCookie request.
func (c *Client) fetchAnonymousID(ctx context.Context) (string, error) {
	resp, err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   generateCookiePath,
	})
	if err != nil {
		return "", &NetworkError{Op: "request", Err: err}
	}
	if !resp.OK() {
		return "", c.parseError(resp)
	}

	id := strings.Trim(strings.TrimSpace(string(resp.Body)), `"`)
	if id == "" {
		return "", ErrEmptyAnonymousID
	}
	return id, nil
}
