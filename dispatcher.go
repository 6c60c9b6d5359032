package connectx

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mintelligence/connectx-go/internal/transport"
)

// job is one fire-and-forget call waiting for delivery. A job with a
// non-nil flushed channel is a marker used by Flush and carries no payload.
type job struct {
	op      string
	path    string
	token   string
	payload map[string]any
	// stamp adds cx_timestamp and cx_knownId to the payload at send time.
	stamp bool
	// delivered runs on the dispatcher goroutine after a 2xx response.
	delivered func()
	flushed   chan struct{}
}

// dispatcher delivers fire-and-forget calls one at a time, in the order
// they were queued.
type dispatcher struct {
	client *Client

	pending chan job
	stopCh  chan struct{}
	doneCh  chan struct{}
	drops   *dropNotifier

	mu      sync.RWMutex
	stopped bool
}

func newDispatcher(client *Client, size int) *dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	d := &dispatcher{
		client:  client,
		pending: make(chan job, size),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if fn := client.config.onDropped; fn != nil {
		d.drops = newDropNotifier(fn)
	}
	return d
}

func (d *dispatcher) start() {
	if d.drops != nil {
		go d.drops.run()
	}
	go d.run()
}

func (d *dispatcher) queueLen() int {
	return len(d.pending)
}

// enqueue queues a job without blocking. A full queue is reported to the
// OnDropped hook on the calling goroutine, after the lock is released.
func (d *dispatcher) enqueue(j job) error {
	if err := d.tryEnqueue(j); !errors.Is(err, ErrQueueFull) {
		return err
	}

	d.client.metrics.observe(j.op, outcomeDropped)
	d.client.log.Warn().Str("op", j.op).Msg("dispatch queue full, dropping call")
	if fn := d.client.config.onDropped; fn != nil {
		fn(ErrQueueFull)
	}
	return ErrQueueFull
}

func (d *dispatcher) tryEnqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrClosed
	}
	select {
	case d.pending <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush waits until every job queued before the call has been handled.
func (d *dispatcher) Flush(ctx context.Context) error {
	marker := job{flushed: make(chan struct{})}

	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		select {
		case <-d.doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case d.pending <- marker:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-marker.flushed:
		return nil
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops the dispatcher after delivering everything already queued.
func (d *dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.stopCh)

	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the background loop that delivers jobs.
func (d *dispatcher) run() {
	defer close(d.doneCh)
	if d.drops != nil {
		defer d.drops.close()
	}

	for {
		select {
		case j := <-d.pending:
			d.handle(j)

		case <-d.stopCh:
			for {
				select {
				case j := <-d.pending:
					d.handle(j)
				default:
					return
				}
			}
		}
	}
}

// handle delivers one job. Failures go to the OnDropped hook and never
// reach the original caller.
func (d *dispatcher) handle(j job) {
	if j.flushed != nil {
		// Flush also waits for the hook calls of earlier failures.
		if d.drops != nil {
			d.drops.push(dropItem{flushed: j.flushed})
		} else {
			close(j.flushed)
		}
		return
	}

	c := d.client
	if j.stamp {
		j.payload["cx_timestamp"] = time.Now().UTC().Format(time.RFC3339)
		if known := c.KnownID(); known != "" {
			j.payload["cx_knownId"] = known
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.timeout)
	defer cancel()

	resp, err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   j.path,
		Body:   j.payload,
		Token:  j.token,
	})
	if err == nil && !resp.OK() {
		err = c.parseError(resp)
	} else if err != nil {
		err = &NetworkError{Op: "request", Err: err}
	}

	if err != nil {
		terr := &TransportError{Op: j.op, Err: err}
		c.metrics.observe(j.op, outcomeFailed)
		c.log.Warn().Err(terr).Str("op", j.op).Str("path", j.path).Msg("delivery failed, dropping call")
		if d.drops != nil {
			d.drops.push(dropItem{err: terr})
		}
		return
	}

	if j.delivered != nil {
		j.delivered()
	}
	c.metrics.observe(j.op, outcomeDelivered)
	c.log.Debug().Str("op", j.op).Str("path", j.path).Int("status", resp.StatusCode).Msg("delivered")
}

type dropItem struct {
	err     error
	flushed chan struct{}
}

// dropNotifier calls the OnDropped hook for delivery failures in order, on
// its own goroutine. The hook may call Client.Close.
type dropNotifier struct {
	fn   func(error)
	wake chan struct{}

	mu     sync.Mutex
	queue  []dropItem
	closed bool
}

func newDropNotifier(fn func(error)) *dropNotifier {
	return &dropNotifier{fn: fn, wake: make(chan struct{}, 1)}
}

func (n *dropNotifier) push(it dropItem) {
	n.mu.Lock()
	n.queue = append(n.queue, it)
	n.mu.Unlock()
	n.signal()
}

// close lets run return once the queue is empty.
func (n *dropNotifier) close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.signal()
}

func (n *dropNotifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *dropNotifier) run() {
	for {
		n.mu.Lock()
		items, closed := n.queue, n.closed
		n.queue = nil
		n.mu.Unlock()

		if len(items) == 0 {
			if closed {
				return
			}
			<-n.wake
			continue
		}
		for _, it := range items {
			if it.flushed != nil {
				close(it.flushed)
				continue
			}
			n.fn(it.err)
		}
	}
}
