package connectx

import (
	"context"
	"errors"
	"sync"
)

// UnknownID fetches a backend-assigned anonymous id for this device.
//
// Concurrent calls share a single request and all receive its result. The
// shared request is bounded by the client timeout and is cancelled once every
// caller waiting on it has given up; a caller whose ctx ends stops waiting
// with a *FetchError. The session's own anonymous id is not changed.
func (c *Client) UnknownID(ctx context.Context) (string, error) {
	if c.isClosed() {
		return "", &FetchError{Err: ErrClosed}
	}
	if _, _, err := c.session.snapshot(); err != nil {
		return "", &FetchError{Err: err}
	}

	fetchCtx := c.joinFetch()
	ch := c.fetches.DoChan(unknownIDKey, func() (any, error) {
		id, err := c.fetchAnonymousID(fetchCtx)
		if err != nil {
			c.metrics.observe("unknown_id", outcomeFailed)
			c.log.Warn().Err(err).Str("op", "unknown_id").Msg("anonymous id fetch failed")
			return "", err
		}
		c.metrics.observe("unknown_id", outcomeDelivered)
		return id, nil
	})

	select {
	case res := <-ch:
		c.leaveFetch(false)
		if res.Err != nil {
			return "", &FetchError{Err: res.Err}
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		c.leaveFetch(true)
		return "", &FetchError{Err: ctx.Err()}
	}
}

const unknownIDKey = "unknown-id"

// joinFetch registers a waiter on the shared request and returns its context.
func (c *Client) joinFetch() context.Context {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if c.fetchWaiters == 0 {
		c.fetchCtx, c.fetchCancel = context.WithTimeout(c.baseCtx, c.config.timeout)
	}
	c.fetchWaiters++
	return c.fetchCtx
}

// leaveFetch removes a waiter. The last one out cancels the shared context;
// if it gave up early the in-flight request is forgotten so the next caller
// starts a fresh one.
func (c *Client) leaveFetch(abandoned bool) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	c.fetchWaiters--
	if c.fetchWaiters > 0 {
		return
	}
	if abandoned {
		c.fetches.Forget(unknownIDKey)
	}
	c.fetchCancel()
}

// FetchState is the state of an UnknownIDFetcher.
type FetchState int

const (
	// FetchIdle means no fetch has been attempted.
	FetchIdle FetchState = iota
	// FetchFetching means a fetch is in flight.
	FetchFetching
	// FetchResolved means the last fetch returned an id.
	FetchResolved
	// FetchFailed means the last fetch failed.
	FetchFailed
)

func (s FetchState) String() string {
	switch s {
	case FetchIdle:
		return "idle"
	case FetchFetching:
		return "fetching"
	case FetchResolved:
		return "resolved"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Texts rendered by UnknownIDFetcher.Text.
const (
	TextUnknownIDNotFetched = "Unknown ID not fetched yet"
	TextUnknownIDFetching   = "Fetching Unknown ID"
	TextUnknownIDEmpty      = "Failed to get Unknown ID"
	TextUnknownIDError      = "Error fetching Unknown ID"
)

// UnknownIDSource is what an UnknownIDFetcher needs from the client.
type UnknownIDSource interface {
	Tracker
	UnknownID(ctx context.Context) (string, error)
}

// UnknownIDFetcher drives an anonymous id lookup for one UI-like component.
// Each Fetch is tied to a scope context. When the result arrives the update
// callback runs only if at least one requesting scope is still alive, and
// once every scope has ended the lookup itself is cancelled.
type UnknownIDFetcher struct {
	source   UnknownIDSource
	onUpdate func(text string)

	mu     sync.Mutex
	state  FetchState
	id     string
	err    error
	scopes []context.Context
	stops  []func() bool
	cancel context.CancelFunc
}

// NewUnknownIDFetcher returns an idle fetcher. onUpdate receives the text to
// display after each completed fetch.
func NewUnknownIDFetcher(source UnknownIDSource, onUpdate func(text string)) *UnknownIDFetcher {
	return &UnknownIDFetcher{source: source, onUpdate: onUpdate}
}

// Fetch starts a lookup bound to scope and returns immediately. While a
// lookup is in flight further calls join it instead of starting another.
// A lookup cancelled because all its scopes ended leaves the fetcher idle.
func (f *UnknownIDFetcher) Fetch(scope context.Context) {
	f.mu.Lock()
	if f.state == FetchFetching {
		f.watchLocked(scope)
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.state = FetchFetching
	f.scopes, f.stops, f.cancel = nil, nil, cancel
	f.watchLocked(scope)
	f.mu.Unlock()

	_ = f.source.Track(TrackingEvent{Name: EventGetUnknownID})

	go func() {
		id, err := f.source.UnknownID(ctx)
		f.finish(ctx, id, err)
	}()
}

// watchLocked adds scope to the lookup in flight.
func (f *UnknownIDFetcher) watchLocked(scope context.Context) {
	f.scopes = append(f.scopes, scope)
	f.stops = append(f.stops, context.AfterFunc(scope, f.scopeEnded))
}

func (f *UnknownIDFetcher) scopeEnded() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FetchFetching && !anyAlive(f.scopes) {
		f.cancel()
	}
}

func (f *UnknownIDFetcher) finish(ctx context.Context, id string, err error) {
	f.mu.Lock()
	canceled := ctx.Err() != nil
	for _, stop := range f.stops {
		stop()
	}
	scopes := f.scopes
	f.scopes, f.stops = nil, nil
	f.cancel()

	alive := anyAlive(scopes)
	switch {
	case err != nil && canceled && !alive:
		f.state, f.id, f.err = FetchIdle, "", nil
	case err != nil:
		f.state, f.id, f.err = FetchFailed, "", err
	default:
		f.state, f.id, f.err = FetchResolved, id, nil
	}
	text := f.textLocked()
	f.mu.Unlock()

	if f.onUpdate == nil || !alive {
		return
	}
	f.onUpdate(text)
}

// State returns the current state.
func (f *UnknownIDFetcher) State() FetchState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the last resolved id and the last error.
func (f *UnknownIDFetcher) Result() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id, f.err
}

// Text renders the current state for display.
func (f *UnknownIDFetcher) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textLocked()
}

func (f *UnknownIDFetcher) textLocked() string {
	switch f.state {
	case FetchFetching:
		return TextUnknownIDFetching
	case FetchResolved:
		return f.id
	case FetchFailed:
		if errors.Is(f.err, ErrEmptyAnonymousID) {
			return TextUnknownIDEmpty
		}
		return TextUnknownIDError
	default:
		return TextUnknownIDNotFetched
	}
}

func anyAlive(scopes []context.Context) bool {
	for _, s := range scopes {
		if s.Err() == nil {
			return true
		}
	}
	return false
}
