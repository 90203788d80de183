package logview

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-console/internal/core"
)

// ErrNoSession is returned when an operation needs an open view.
var ErrNoSession = errors.New("log view is not open")

// Viewer owns the lifecycle of the log view: at most one session and one stream connection
// exist at a time, and the previous connection is closed before a new one is dialed.
type Viewer struct {
	dialer  core.Dialer
	options Options
	log     *logger.Logger
	conn    core.StreamConn
	session *Session
}

// NewViewer creates a Viewer that opens connections with dialer.
func NewViewer(dialer core.Dialer, options Options, log *logger.Logger) *Viewer {
	return &Viewer{
		dialer:  dialer,
		options: options,
		log:     log,
		conn:    nil,
		session: nil,
	}
}

// Open discards the current session, closing its connection, then starts a new session
// painting into surface and dials a new connection. The returned session is usable even
// when dialing fails; the failure is shown in it as the stream error entry.
func (v *Viewer) Open(ctx context.Context, surface Surface) (*Session, error) {
	closeErr := v.Close()
	if closeErr != nil {
		v.log.Warn("Failed to close previous log stream: %v", closeErr)
	}

	v.session = NewSession(v.options, surface)

	conn, err := v.dialer.Dial(ctx)
	if err != nil {
		v.session.HandleEvent(core.StreamEvent{Kind: core.StreamFailed, Data: nil, Err: err})

		return v.session, fmt.Errorf("failed to open log stream: %w", err)
	}

	v.conn = conn
	v.log.Info("Log stream opened.")

	return v.session, nil
}

// Session returns the current session, or nil when the view is closed.
func (v *Viewer) Session() *Session {
	return v.session
}

// Events returns the current connection's event queue. It is nil when no connection is open.
func (v *Viewer) Events() <-chan core.StreamEvent {
	if v.conn == nil {
		return nil
	}

	return v.conn.Events()
}

// Dispatch applies one event to the current session and closes the connection when the
// event ends the stream.
func (v *Viewer) Dispatch(event core.StreamEvent) error {
	if v.session == nil {
		return ErrNoSession
	}

	if !v.session.HandleEvent(event) {
		return nil
	}

	v.log.Warn("Log stream failed: %v", event.Err)

	return v.closeConn()
}

// Close closes the connection and discards the session.
func (v *Viewer) Close() error {
	err := v.closeConn()
	v.session = nil

	return err
}

func (v *Viewer) closeConn() error {
	if v.conn == nil {
		return nil
	}

	conn := v.conn
	v.conn = nil

	err := conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close log stream: %w", err)
	}

	return nil
}
