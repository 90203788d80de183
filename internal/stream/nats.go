package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/tts-console/internal/core"
	"github.com/nats-io/nats.go"
)

// NATSDialer subscribes to a NATS subject carrying one log line per message.
type NATSDialer struct {
	natsConnection *nats.Conn
	subject        string
}

// NewNATSDialer creates a dialer for subject on natsConnection.
func NewNATSDialer(natsConnection *nats.Conn, subject string) *NATSDialer {
	return &NATSDialer{
		natsConnection: natsConnection,
		subject:        subject,
	}
}

// Dial subscribes to the subject. The first event of the connection is StreamOpened; the
// NATS connection closing ends it with StreamFailed. Messages wait in the subscription's
// pending list, which has no limit, until the reader takes them, so a slow reader never
// loses lines.
func (d *NATSDialer) Dial(ctx context.Context) (core.StreamConn, error) {
	connCtx, cancel := context.WithCancel(ctx)

	conn := &natsConn{
		events: make(chan core.StreamEvent, eventQueueSize),
		ctx:    connCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		once:   sync.Once{},
		mu:     sync.Mutex{},
		ended:  false,
		sub:    nil,
	}

	conn.events <- core.StreamEvent{Kind: core.StreamOpened, Data: nil, Err: nil}

	sub, err := d.natsConnection.Subscribe(d.subject, conn.forward)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to subscribe to log subject %s: %w", d.subject, err)
	}

	err = sub.SetPendingLimits(-1, -1)
	if err != nil {
		cancel()

		unsubErr := sub.Unsubscribe()

		return nil, errors.Join(fmt.Errorf("failed to lift pending limits on %s: %w", d.subject, err), unsubErr)
	}

	conn.sub = sub

	go conn.watch(d.natsConnection)

	return conn, nil
}

type natsConn struct {
	events chan core.StreamEvent
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	// mu serializes sends on events with closing it.
	mu    sync.Mutex
	ended bool
	sub   *nats.Subscription
}

func (c *natsConn) Events() <-chan core.StreamEvent {
	return c.events
}

// Close unsubscribes and waits for the watcher goroutine to exit.
func (c *natsConn) Close() error {
	var unsubErr error

	c.once.Do(func() {
		c.cancel()

		unsubErr = c.sub.Unsubscribe()
	})
	<-c.done

	if unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) &&
		!errors.Is(unsubErr, nats.ErrBadSubscription) {
		return fmt.Errorf("failed to unsubscribe from log subject: %w", unsubErr)
	}

	return nil
}

// forward runs on the subscription's delivery goroutine, one message at a time.
func (c *natsConn) forward(msg *nats.Msg) {
	c.emit(core.StreamEvent{Kind: core.StreamMessage, Data: msg.Data, Err: nil})
}

// watch ends the stream when the caller closes it or the NATS connection closes.
func (c *natsConn) watch(natsConnection *nats.Conn) {
	defer close(c.done)
	defer c.end()

	closed := natsConnection.StatusChanged(nats.CLOSED)
	defer natsConnection.RemoveStatusListener(closed)

	failed := core.StreamEvent{Kind: core.StreamFailed, Data: nil, Err: nats.ErrConnectionClosed}

	if natsConnection.IsClosed() {
		c.emit(failed)

		return
	}

	select {
	case <-c.ctx.Done():
	case <-closed:
		c.emit(failed)
	}
}

func (c *natsConn) emit(event core.StreamEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended || c.ctx.Err() != nil {
		return false
	}

	select {
	case c.events <- event:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *natsConn) end() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ended {
		c.ended = true

		close(c.events)
	}
}
