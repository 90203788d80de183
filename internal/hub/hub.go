// Package hub fans formatted log lines out to live stream subscribers and keeps a short
// history that is replayed to every new subscriber.
package hub

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/book-expert/tts-console/internal/ringbuf"
)

// Defaults used when a size is not configured.
const (
	DefaultHistorySize      = 200
	DefaultSubscriberBuffer = 256
)

// MaxLineBytes bounds the unterminated tail held by Write. A longer tail is published as
// a line of its own.
const MaxLineBytes = 64 * 1024

// Hub is a log line broadcaster. It is safe for concurrent use.
type Hub struct {
	mu               sync.Mutex
	history          *ringbuf.Buffer[string]
	subscribers      map[chan string]struct{}
	subscriberBuffer int
	partial          bytes.Buffer
	dropped          atomic.Uint64
	published        atomic.Uint64
}

// Stats is a point-in-time view of the hub's counters.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	History     int    `json:"history"`
	Capacity    int    `json:"capacity"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// New creates a Hub keeping the last historySize lines. Each subscriber may fall
// subscriberBuffer lines behind before further lines are dropped for it.
func New(historySize, subscriberBuffer int) *Hub {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}

	return &Hub{
		history:          ringbuf.New[string](historySize),
		subscribers:      make(map[chan string]struct{}),
		subscriberBuffer: subscriberBuffer,
	}
}

// Publish records line in the history and delivers it to every subscriber. A subscriber
// whose queue is full misses the line; the hub never blocks on a slow reader.
func (h *Hub) Publish(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.publishLocked(line)
}

func (h *Hub) publishLocked(line string) {
	h.history.Push(line)
	h.published.Add(1)

	for ch := range h.subscribers {
		select {
		case ch <- line:
		default:
			h.dropped.Add(1)
		}
	}
}

// Write publishes every complete line in p. A trailing partial line is held until the
// rest of it arrives, up to MaxLineBytes. Write never fails, so the hub can sit behind any io.Writer.
func (h *Hub) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.partial.Write(p)

	for {
		data := h.partial.Bytes()

		index := bytes.IndexByte(data, '\n')
		if index < 0 {
			break
		}

		line := strings.TrimSuffix(string(data[:index]), "\r")
		h.partial.Next(index + 1)

		if line != "" {
			h.publishLocked(line)
		}
	}

	for h.partial.Len() >= MaxLineBytes {
		data := h.partial.Bytes()

		// Cut on a rune boundary.
		cut := MaxLineBytes
		for len(data) > cut && cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}

		if cut == 0 {
			cut = MaxLineBytes
		}

		h.publishLocked(string(h.partial.Next(cut)))
	}

	return len(p), nil
}

// Subscribe registers a new subscriber. It returns the current history, oldest first,
// the channel that receives every line published afterwards, and a function that
// unsubscribes and closes the channel.
func (h *Hub) Subscribe() ([]string, <-chan string, func()) {
	ch := make(chan string, h.subscriberBuffer)

	h.mu.Lock()
	history := h.history.Items()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}

	return history, ch, cancel
}

// History returns the retained lines, oldest first.
func (h *Hub) History() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.history.Items()
}

// Stats returns the hub's counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Subscribers: len(h.subscribers),
		History:     h.history.Len(),
		Capacity:    h.history.Cap(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}
