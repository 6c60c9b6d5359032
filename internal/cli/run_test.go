package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connectx "github.com/mintelligence/connectx-go"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTracker) Track(ev connectx.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.Name)
	return nil
}

func (r *recordingTracker) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestHostApp_Run(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"pause",
		"pause",
		"resume",
		"show form",
		"show form",
		"hide form",
		"toggle form",
		"submit form",
		"track clicked buy",
		"",
		"bogus",
		"show",
		"quit",
		"pause",
	}, "\n")

	tracker := &recordingTracker{}
	var out bytes.Buffer
	err := newHostApp(tracker).run(context.Background(), strings.NewReader(input), &out, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		connectx.EventOpenApp,
		connectx.EventAppPause,
		connectx.EventAppResume,
		"open form",
		"close form",
		"open form",
		"submit form",
		"clicked buy",
	}, tracker.names())
	assert.Contains(t, out.String(), `unknown command "bogus"`)
	assert.Contains(t, out.String(), "show needs a panel name")
}

func TestHostApp_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracker := &recordingTracker{}
	err := newHostApp(tracker).run(ctx, strings.NewReader(""), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{connectx.EventOpenApp}, tracker.names())
}

func TestHostApp_LifecycleSignals(t *testing.T) {
	t.Parallel()
	if pauseSignal == nil {
		t.Skip("no pause/resume signals on this platform")
	}

	stdin, feed := io.Pipe()
	defer feed.Close()

	signals := make(chan os.Signal, 1)
	tracker := &recordingTracker{}
	done := make(chan error, 1)
	go func() {
		done <- newHostApp(tracker).run(context.Background(), stdin, &bytes.Buffer{}, signals)
	}()

	signals <- pauseSignal
	require.Eventually(t, func() bool { return len(tracker.names()) == 2 }, 2*time.Second, 5*time.Millisecond)
	signals <- pauseSignal
	signals <- resumeSignal
	require.Eventually(t, func() bool { return len(tracker.names()) == 3 }, 2*time.Second, 5*time.Millisecond)

	_, err := io.WriteString(feed, "quit\n")
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.Equal(t, []string{
		connectx.EventOpenApp,
		connectx.EventAppPause,
		connectx.EventAppResume,
	}, tracker.names())
}
