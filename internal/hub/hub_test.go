// Package hub_test tests the log line broadcaster.
package hub_test

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/book-expert/tts-console/internal/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	logHub := hub.New(3, 0)
	for i := range 5 {
		logHub.Publish(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, logHub.History())
	assert.Equal(t, uint64(5), logHub.Stats().Published)
	assert.Equal(t, 3, logHub.Stats().Capacity)
}

func TestHub_SubscribeReplaysHistoryThenStreams(t *testing.T) {
	t.Parallel()

	logHub := hub.New(hub.DefaultHistorySize, 8)
	logHub.Publish("before")

	history, lines, cancel := logHub.Subscribe()
	defer cancel()

	assert.Equal(t, []string{"before"}, history)

	logHub.Publish("after 1")
	logHub.Publish("after 2")

	assert.Equal(t, "after 1", <-lines)
	assert.Equal(t, "after 2", <-lines)
	assert.Equal(t, 1, logHub.Stats().Subscribers)
}

func TestHub_CancelUnsubscribesAndCloses(t *testing.T) {
	t.Parallel()

	logHub := hub.New(0, 0)

	_, lines, cancel := logHub.Subscribe()
	cancel()
	cancel()

	_, ok := <-lines
	assert.False(t, ok)
	assert.Zero(t, logHub.Stats().Subscribers)

	logHub.Publish("nobody listens")
	assert.Equal(t, []string{"nobody listens"}, logHub.History())
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	logHub := hub.New(10, 2)

	_, lines, cancel := logHub.Subscribe()
	defer cancel()

	for i := range 5 {
		logHub.Publish(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, "line 0", <-lines)
	assert.Equal(t, "line 1", <-lines)
	assert.Equal(t, uint64(3), logHub.Stats().Dropped)
}

func TestHub_WriteSplitsLines(t *testing.T) {
	t.Parallel()

	logHub := hub.New(10, 0)

	var writer io.Writer = logHub

	_, err := io.WriteString(writer, "first\nsec")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, logHub.History())

	n, err := io.WriteString(writer, "ond\r\n\nthird\n")
	require.NoError(t, err)
	assert.Equal(t, len("ond\r\n\nthird\n"), n)

	assert.Equal(t, []string{"first", "second", "third"}, logHub.History())
}

func TestHub_WriteBoundsUnterminatedLine(t *testing.T) {
	t.Parallel()

	logHub := hub.New(10, 0)

	long := strings.Repeat("x", hub.MaxLineBytes)

	_, err := io.WriteString(logHub, long)
	require.NoError(t, err)

	history := logHub.History()
	require.Len(t, history, 1)
	assert.Len(t, history[0], hub.MaxLineBytes)

	_, err = io.WriteString(logHub, "tail\n")
	require.NoError(t, err)

	assert.Equal(t, "tail", logHub.History()[1])
}

func TestHub_WriteSplitsOversizedTailOnRuneBoundary(t *testing.T) {
	t.Parallel()

	logHub := hub.New(10, 0)

	// Two ASCII bytes put a three-byte rune across the cut.
	_, err := io.WriteString(logHub, "xy"+strings.Repeat("€", hub.MaxLineBytes/3))
	require.NoError(t, err)

	history := logHub.History()
	require.Len(t, history, 1)
	assert.Len(t, history[0], hub.MaxLineBytes-2)
	assert.True(t, utf8.ValidString(history[0]))
}

func TestHub_ConcurrentPublishers(t *testing.T) {
	t.Parallel()

	logHub := hub.New(1000, 1000)

	_, lines, cancel := logHub.Subscribe()
	defer cancel()

	var wg sync.WaitGroup

	for worker := range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 100 {
				logHub.Publish(fmt.Sprintf("w%d-%d", worker, i))
			}
		}()
	}

	wg.Wait()

	assert.Len(t, logHub.History(), 400)
	assert.Len(t, lines, 400)
}
