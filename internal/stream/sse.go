// Package stream provides the log console's stream transports. Every connection delivers
// its events on a single channel, in arrival order, and closes the channel when it ends.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/book-expert/tts-console/internal/core"
)

// HTTP headers.
const (
	headerAccept       = "Accept"
	headerCacheControl = "Cache-Control"
	contentTypeSSE     = "text/event-stream"
)

const (
	// eventQueueSize bounds the number of undelivered events per connection. A full queue
	// applies back-pressure to the transport rather than dropping lines.
	eventQueueSize = 256
	// maxLineBytes bounds a single SSE line.
	maxLineBytes = 1024 * 1024
	// defaultEventType is the SSE event type dispatched to message handlers.
	defaultEventType = "message"
)

var (
	// ErrStreamEnded is reported when the server ends the response.
	ErrStreamEnded = errors.New("log stream ended by server")
	// ErrUnexpectedStatus is reported when the server refuses the stream.
	ErrUnexpectedStatus = errors.New("unexpected log stream status")
)

// SSEDialer opens server-sent event connections to a log stream endpoint.
type SSEDialer struct {
	httpClient *http.Client
	url        string
}

// NewSSEDialer creates a dialer for url. The HTTP client must not carry an overall
// timeout: the stream stays open until the server or the caller ends it.
func NewSSEDialer(url string, httpClient *http.Client) *SSEDialer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &SSEDialer{
		httpClient: httpClient,
		url:        url,
	}
}

// Dial starts a connection. Connection failures are delivered as a StreamFailed event, the
// way a browser event source reports them, so Dial itself only fails on a malformed request.
func (d *SSEDialer) Dial(ctx context.Context) (core.StreamConn, error) {
	connCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, d.url, http.NoBody)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to create log stream request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeSSE)
	req.Header.Set(headerCacheControl, "no-cache")

	conn := &sseConn{
		events: make(chan core.StreamEvent, eventQueueSize),
		cancel: cancel,
		done:   make(chan struct{}),
		once:   sync.Once{},
	}

	go conn.run(connCtx, d.httpClient, req)

	return conn, nil
}

type sseConn struct {
	events chan core.StreamEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (c *sseConn) Events() <-chan core.StreamEvent {
	return c.events
}

// Close stops the connection and waits for its reader to exit.
func (c *sseConn) Close() error {
	c.once.Do(c.cancel)
	<-c.done

	return nil
}

func (c *sseConn) run(ctx context.Context, httpClient *http.Client, req *http.Request) {
	defer close(c.done)
	defer close(c.events)

	resp, err := httpClient.Do(req)
	if err != nil {
		c.fail(ctx, fmt.Errorf("failed to connect to log stream at %s: %w", req.URL, err))

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.fail(ctx, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))

		return
	}

	if !c.emit(ctx, core.StreamEvent{Kind: core.StreamOpened, Data: nil, Err: nil}) {
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var parser eventParser

	for scanner.Scan() {
		data, dispatch := parser.feed(scanner.Bytes())
		if !dispatch {
			continue
		}

		if !c.emit(ctx, core.StreamEvent{Kind: core.StreamMessage, Data: data, Err: nil}) {
			return
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		c.fail(ctx, fmt.Errorf("failed to read log stream: %w", scanErr))

		return
	}

	c.fail(ctx, ErrStreamEnded)
}

// emit queues event unless the connection was closed. It reports whether the reader
// should continue.
func (c *sseConn) emit(ctx context.Context, event core.StreamEvent) bool {
	select {
	case c.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail reports a transport error, unless the failure is the caller closing the connection.
func (c *sseConn) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	c.emit(ctx, core.StreamEvent{Kind: core.StreamFailed, Data: nil, Err: err})
}

// eventParser accumulates the fields of one server-sent event.
type eventParser struct {
	data      bytes.Buffer
	hasData   bool
	eventType string
}

// feed consumes one line. On the blank line that ends an event it returns the event's data
// and whether it should be dispatched to message handlers.
func (p *eventParser) feed(line []byte) ([]byte, bool) {
	if len(line) == 0 {
		return p.dispatch()
	}

	if line[0] == ':' {
		return nil, false
	}

	field, value, found := bytes.Cut(line, []byte(":"))
	if found && len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}

	switch string(field) {
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}

		p.data.Write(value)
		p.hasData = true
	case "event":
		p.eventType = string(value)
	}

	return nil, false
}

func (p *eventParser) dispatch() ([]byte, bool) {
	defer func() {
		p.data.Reset()
		p.hasData = false
		p.eventType = ""
	}()

	if !p.hasData {
		return nil, false
	}

	if p.eventType != "" && p.eventType != defaultEventType {
		return nil, false
	}

	data := make([]byte, p.data.Len())
	copy(data, p.data.Bytes())

	return data, true
}
