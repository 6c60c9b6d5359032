package connectx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_NotInitialized(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	client := newTestClient(t, f)

	err := client.Track(TrackingEvent{Name: EventOpenApp})
	assert.ErrorIs(t, err, ErrNotInitialized)

	flush(t, client)
	assert.Empty(t, f.received(trackPath))
}

func TestTrack_Payload(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	client := newInitializedClient(t, f, WithClientInfo(ClientInfo{
		Language: "en",
		Type:     "Go App",
		DeviceID: "device-1",
		Model:    "ThinkPad X1",
		OS:       "linux",
	}))

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, client.Track(TrackingEvent{
		Name:       "view product",
		Attributes: map[string]any{"sku": "A-100", "cx_language": "fr"},
	}))
	flush(t, client)

	reqs := f.received(trackPath)
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "Bearer test-token", req.Auth)

	body := req.Body
	assert.Equal(t, "view product", body["cx_event"])
	assert.Equal(t, "org-1", body["organizeId"])
	assert.Equal(t, cookieID, body["cx_cookie"])
	assert.Equal(t, "A-100", body["sku"])
	assert.Equal(t, "fr", body["cx_language"], "attributes override device context")
	assert.Equal(t, "device-1", body["cx_deviceId"])
	assert.Equal(t, "ThinkPad X1", body["device"])
	assert.Equal(t, "Go", body["cx_libraryPlatform"])
	assert.NotContains(t, body, "cx_knownId")

	stamp, ok := body["cx_timestamp"].(string)
	require.True(t, ok)
	ts, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.False(t, ts.Before(before))
}

func TestTrack_PreservesOrder(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	client := newInitializedClient(t, f)

	const n = 25
	for i := 0; i < n; i++ {
		require.NoError(t, client.Track(TrackingEvent{Name: fmt.Sprintf("event %d", i)}))
	}
	flush(t, client)

	reqs := f.received(trackPath)
	require.Len(t, reqs, n)
	for i, r := range reqs {
		assert.Equal(t, fmt.Sprintf("event %d", i), r.Body["cx_event"])
	}
}

func TestTrack_Validation(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	client := newInitializedClient(t, f)

	tests := []struct {
		name  string
		event TrackingEvent
	}{
		{name: "empty name", event: TrackingEvent{}},
		{name: "unencodable attribute", event: TrackingEvent{Name: "x", Attributes: map[string]any{"f": func() {}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Track(tt.event)
			require.Error(t, err)
			assert.True(t, IsClientValidationError(err))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	flush(t, client)
	assert.Empty(t, f.received(trackPath))
}

func TestTrack_DeliveryFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	f.setPostHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"bad token"}}`))
	})

	drops := &dropRecorder{}
	client := newInitializedClient(t, f, WithOnDropped(drops.record))

	require.NoError(t, client.Track(TrackingEvent{Name: EventOpenApp}))
	require.NoError(t, client.Track(TrackingEvent{Name: EventAppPause}))
	flush(t, client)

	errs := drops.all()
	require.Len(t, errs, 2)

	var terr *TransportError
	require.True(t, errors.As(errs[0], &terr))
	assert.Equal(t, "track", terr.Op)
	assert.True(t, IsUnauthorized(errs[0]))

	var apiErr *APIError
	require.True(t, errors.As(errs[0], &apiErr))
	assert.Equal(t, "bad token", apiErr.Message)

	// The client keeps working after failed deliveries.
	f.setPostHandler(nil)
	require.NoError(t, client.Track(TrackingEvent{Name: EventAppResume}))
	flush(t, client)
	assert.Len(t, drops.all(), 2)
	assert.Len(t, f.received(trackPath), 3)
}

func TestTrack_QueueFull(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)

	release := make(chan struct{})
	f.setPostHandler(func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	drops := &dropRecorder{}
	client := newInitializedClient(t, f, WithQueueSize(1), WithOnDropped(drops.record))
	defer close(release)

	// The first event is taken off the queue and blocks in delivery.
	require.NoError(t, client.Track(TrackingEvent{Name: "first"}))
	require.Eventually(t, func() bool { return len(f.received(trackPath)) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, client.Track(TrackingEvent{Name: "second"}))
	err := client.Track(TrackingEvent{Name: "third"})
	assert.ErrorIs(t, err, ErrQueueFull)

	errs := drops.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrQueueFull)
}

func TestTrack_KnownIDAfterIdentify(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	client := newInitializedClient(t, f)

	require.NoError(t, client.Identify(CustomerIdentity{
		Key:      "cx_userId",
		Customer: map[string]any{"cx_userId": "u-1"},
	}))
	require.NoError(t, client.Track(TrackingEvent{Name: "purchase"}))
	flush(t, client)

	reqs := f.received(trackPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "u-1", reqs[0].Body["cx_knownId"])
}

func TestTrackAttributes(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	client := newInitializedClient(t, f)

	require.NoError(t, client.TrackAttributes(map[string]string{
		"cx_event": "submit form",
		"form":     "signup",
	}))
	flush(t, client)

	reqs := f.received(trackPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "submit form", reqs[0].Body["cx_event"])
	assert.Equal(t, "signup", reqs[0].Body["form"])

	err := client.TrackAttributes(map[string]string{"form": "signup"})
	assert.True(t, IsClientValidationError(err))
}

func TestFlush_Canceled(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)

	release := make(chan struct{})
	f.setPostHandler(func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	client := newInitializedClient(t, f)
	defer close(release)

	require.NoError(t, client.Track(TrackingEvent{Name: "slow"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Flush(ctx), context.DeadlineExceeded)
}

func TestOnDropped_HookCanCloseClient(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)
	f.setPostHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var client *Client
	closed := make(chan error, 1)
	client = newInitializedClient(t, f, WithOnDropped(func(err error) {
		select {
		case closed <- client.Close():
		default:
		}
	}))

	require.NoError(t, client.Track(TrackingEvent{Name: EventOpenApp}))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close called from the OnDropped hook did not return")
	}
	assert.NoError(t, client.Close())
	assert.ErrorIs(t, client.Track(TrackingEvent{Name: "after close"}), ErrClosed)
}

func TestOnDropped_QueueFullHookCanCloseClient(t *testing.T) {
	t.Parallel()
	f := newFakeBackend(t)

	release := make(chan struct{})
	f.setPostHandler(func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	var client *Client
	hooked := make(chan struct{})
	client = newInitializedClient(t, f, WithQueueSize(1), WithOnDropped(func(err error) {
		if errors.Is(err, ErrQueueFull) {
			close(hooked)
			_ = client.Close()
		}
	}))

	require.NoError(t, client.Track(TrackingEvent{Name: "first"}))
	require.Eventually(t, func() bool { return len(f.received(trackPath)) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, client.Track(TrackingEvent{Name: "second"}))

	result := make(chan error, 1)
	go func() {
		result <- client.Track(TrackingEvent{Name: "third"})
	}()
	select {
	case <-hooked:
	case <-time.After(2 * time.Second):
		t.Fatal("queue full was not reported")
	}
	close(release)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(2 * time.Second):
		t.Fatal("Track with a closing OnDropped hook did not return")
	}
	assert.ErrorIs(t, client.Track(TrackingEvent{Name: "after close"}), ErrClosed)
	assert.Len(t, f.received(trackPath), 2, "Close delivers the queued call")
}
