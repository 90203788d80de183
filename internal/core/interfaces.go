// Package core defines the interfaces shared by the log console's transports, views and stores.
package core

import "context"

// StreamEventKind identifies what happened on a stream connection.
type StreamEventKind int

const (
	// StreamOpened is delivered once, when the connection is established.
	StreamOpened StreamEventKind = iota
	// StreamMessage carries one log line payload.
	StreamMessage
	// StreamFailed reports a transport error. No further events follow it.
	StreamFailed
)

// String returns the event kind name.
func (k StreamEventKind) String() string {
	switch k {
	case StreamOpened:
		return "open"
	case StreamMessage:
		return "message"
	case StreamFailed:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is one item of a stream connection's event queue.
type StreamEvent struct {
	Kind StreamEventKind
	Data []byte
	Err  error
}

// StreamConn is a single open log stream. Events are delivered strictly in arrival
// order on one channel that is closed when the connection ends.
type StreamConn interface {
	Events() <-chan StreamEvent
	Close() error
}

// Dialer opens log stream connections.
type Dialer interface {
	Dial(ctx context.Context) (StreamConn, error)
}

// Translator converts a raw log line, possibly carrying terminal color codes, into its
// display form. Implementations must be pure.
type Translator interface {
	Render(raw string) string
}

// SnapshotStore defines the interface for saving and loading view snapshots in a blob store.
type SnapshotStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}
