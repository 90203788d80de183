package logview

import (
	"context"
	"fmt"

	"github.com/book-expert/tts-console/internal/core"
	"github.com/book-expert/tts-console/internal/markup"
	"github.com/book-expert/tts-console/internal/ringbuf"
	"github.com/valyala/fastjson"
)

// DefaultCapacity is the number of entries a session retains.
const DefaultCapacity = 5000

// Synthetic entries appended on connection lifecycle events.
const (
	StreamOpenedMessage = "log stream connected."
	StreamFailedMessage = "log stream error, check the server status and refresh the view"
)

// Surface is the region a session paints into.
type Surface interface {
	// Replace swaps the whole content for lines, in order.
	Replace(lines []string)
	// ScrollToBottom moves the view to the end of its content.
	ScrollToBottom()
}

// ScrollPosition describes a surface's scroll state, in lines.
type ScrollPosition struct {
	Offset int
	Height int
	Total  int
}

// AtBottom reports whether the view shows the end of its content, with one line of tolerance.
func (p ScrollPosition) AtBottom() bool {
	return p.Total-p.Height <= p.Offset+1
}

// Options configures a new Session.
type Options struct {
	Capacity    int
	Criteria    Criteria
	AutoRefresh bool
	Translator  core.Translator
}

// DefaultOptions returns the options of a freshly opened log view.
func DefaultOptions() Options {
	return Options{
		Capacity:    DefaultCapacity,
		Criteria:    DefaultCriteria(),
		AutoRefresh: true,
		Translator:  markup.Terminal{},
	}
}

// Session is one activation of the log view. It owns the entry buffer, the filter state
// and the auto-scroll state. A Session is confined to a single goroutine.
type Session struct {
	buffer      *ringbuf.Buffer[Entry]
	criteria    Criteria
	autoRefresh bool
	pinned      bool
	surface     Surface
	translator  core.Translator
	parser      fastjson.Parser
	visible     []Entry
}

// NewSession creates a session painting into surface.
func NewSession(options Options, surface Surface) *Session {
	capacity := options.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	translator := options.Translator
	if translator == nil {
		translator = markup.Terminal{}
	}

	return &Session{
		buffer:      ringbuf.New[Entry](capacity),
		criteria:    options.Criteria,
		autoRefresh: options.AutoRefresh,
		pinned:      true,
		surface:     surface,
		translator:  translator,
		parser:      fastjson.Parser{},
		visible:     nil,
	}
}

// Append records raw as a new entry and re-renders when auto-refresh is on.
func (s *Session) Append(raw string) {
	s.buffer.Push(NewEntry(raw, s.translator))
	s.Render()
}

// HandleMessage appends the line carried by a stream message payload.
func (s *Session) HandleMessage(payload []byte) {
	s.Append(decodePayload(&s.parser, payload))
}

// HandleEvent applies one stream event. It reports whether the connection that delivered
// the event must now be closed.
func (s *Session) HandleEvent(event core.StreamEvent) bool {
	switch event.Kind {
	case core.StreamOpened:
		s.Append(StreamOpenedMessage)

		return false
	case core.StreamMessage:
		s.HandleMessage(event.Data)

		return false
	case core.StreamFailed:
		if event.Err != nil {
			s.Append(fmt.Sprintf("%s: %v", StreamFailedMessage, event.Err))
		} else {
			s.Append(StreamFailedMessage)
		}

		return true
	default:
		return false
	}
}

// Drain consumes conn's events in arrival order until the connection ends, a failure
// closes it, or ctx is cancelled.
func (s *Session) Drain(ctx context.Context, conn core.StreamConn) error {
	events := conn.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}

			if !s.HandleEvent(event) {
				continue
			}

			closeErr := conn.Close()
			if closeErr != nil {
				return fmt.Errorf("failed to close log stream: %w", closeErr)
			}

			return nil
		}
	}
}

// Render repaints the surface with the entries selected by the current criteria. It does
// nothing while auto-refresh is off.
func (s *Session) Render() {
	if !s.autoRefresh {
		return
	}

	s.visible = Select(s.buffer.Items(), s.criteria)

	lines := make([]string, len(s.visible))
	for i, entry := range s.visible {
		lines[i] = entry.Rendered
	}

	s.surface.Replace(lines)

	if s.pinned {
		s.surface.ScrollToBottom()
	}
}

// SetCriteria replaces every filter control value and re-renders.
func (s *Session) SetCriteria(criteria Criteria) {
	s.criteria = criteria
	s.Render()
}

// SetLevel updates the level token and re-renders.
func (s *Session) SetLevel(level string) {
	s.criteria.Level = level
	s.Render()
}

// SetKeyword updates the keyword and re-renders.
func (s *Session) SetKeyword(keyword string) {
	s.criteria.Keyword = keyword
	s.Render()
}

// SetLimit updates the limit from the text of the limit control and re-renders.
func (s *Session) SetLimit(text string) {
	s.criteria.Limit = ParseLimit(text)
	s.Render()
}

// SetAutoRefresh toggles auto-refresh. Turning it on renders the current buffer.
func (s *Session) SetAutoRefresh(enabled bool) {
	s.autoRefresh = enabled
	s.Render()
}

// Scrolled records the surface's scroll position after a user scroll.
func (s *Session) Scrolled(position ScrollPosition) {
	s.pinned = position.AtBottom()
}

// AutoRefresh reports whether buffer changes are painted immediately.
func (s *Session) AutoRefresh() bool {
	return s.autoRefresh
}

// Pinned reports whether the view follows new entries.
func (s *Session) Pinned() bool {
	return s.pinned
}

// Criteria returns the current filter values.
func (s *Session) Criteria() Criteria {
	return s.criteria
}

// Len returns the number of buffered entries.
func (s *Session) Len() int {
	return s.buffer.Len()
}

// Entries returns the buffered entries, oldest first.
func (s *Session) Entries() []Entry {
	return s.buffer.Items()
}

// Visible returns the entries painted by the last render.
func (s *Session) Visible() []Entry {
	out := make([]Entry, len(s.visible))
	copy(out, s.visible)

	return out
}
