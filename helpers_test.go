package connectx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{Token: "test-token", OrganizationID: "org-1"}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
	Raw    []byte
}

// fakeBackend records every request. generateCookie answers with cookieID
// unless cookieHandler is set; every other request gets postHandler or 200.
type fakeBackend struct {
	*httptest.Server

	cookieCalls atomic.Int32

	mu            sync.Mutex
	requests      []recordedRequest
	cookieHandler http.HandlerFunc
	postHandler   http.HandlerFunc
}

const cookieID = "anon-1"

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	f := &fakeBackend{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Raw:    raw,
	}
	_ = json.Unmarshal(raw, &rec.Body)

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	cookieHandler, postHandler := f.cookieHandler, f.postHandler
	f.mu.Unlock()

	if r.URL.Path == generateCookiePath {
		f.cookieCalls.Add(1)
		if cookieHandler != nil {
			cookieHandler(w, r)
			return
		}
		_, _ = io.WriteString(w, cookieID)
		return
	}
	if postHandler != nil {
		postHandler(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{}`)
}

func (f *fakeBackend) setCookieHandler(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookieHandler = h
}

func (f *fakeBackend) setPostHandler(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postHandler = h
}

// received returns the recorded requests for path.
func (f *fakeBackend) received(path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func newTestClient(t *testing.T, f *fakeBackend, opts ...Option) *Client {
	t.Helper()

	all := append([]Option{WithBaseURL(f.URL), WithTimeout(2 * time.Second)}, opts...)
	client, err := NewClient(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newInitializedClient(t *testing.T, f *fakeBackend, opts ...Option) *Client {
	t.Helper()

	client := newTestClient(t, f, opts...)
	require.NoError(t, client.Initialize(context.Background(), testCreds))
	return client
}

func flush(t *testing.T, c *Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

// dropRecorder collects errors passed to the OnDropped hook.
type dropRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (d *dropRecorder) record(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *dropRecorder) all() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

// recordingTracker is a Tracker that remembers event names.
type recordingTracker struct {
	mu     sync.Mutex
	events []TrackingEvent
}

func (r *recordingTracker) Track(ev TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingTracker) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}
