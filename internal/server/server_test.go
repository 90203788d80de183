// Package server_test tests the hub's HTTP surface.
package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/book-expert/tts-console/internal/core"
	"github.com/book-expert/tts-console/internal/hub"
	"github.com/book-expert/tts-console/internal/logview"
	"github.com/book-expert/tts-console/internal/server"
	"github.com/book-expert/tts-console/internal/stream"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 5 * time.Second

type recordingSurface struct {
	lines []string
}

func (r *recordingSurface) Replace(lines []string) {
	r.lines = append([]string(nil), lines...)
}

func (r *recordingSurface) ScrollToBottom() {}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, logHub *hub.Hub) *httptest.Server {
	t.Helper()

	router := server.New(logHub, log.New(io.Discard)).
		WithKeepAlive(50 * time.Millisecond).
		Router(io.Discard)

	testServer := httptest.NewServer(router)
	t.Cleanup(testServer.Close)

	return testServer
}

func nextEvent(t *testing.T, events <-chan core.StreamEvent) core.StreamEvent {
	t.Helper()

	select {
	case event, ok := <-events:
		require.True(t, ok, "event channel closed early")

		return event
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for stream event")

		return core.StreamEvent{}
	}
}

func TestStreamLogs_ReplaysHistoryThenLiveLines(t *testing.T) {
	t.Parallel()

	logHub := hub.New(hub.DefaultHistorySize, hub.DefaultSubscriberBuffer)
	logHub.Publish("INFO start")
	logHub.Publish("\x1b[31mERROR\x1b[0m boom")

	testServer := newTestServer(t, logHub)

	conn, err := stream.NewSSEDialer(testServer.URL+"/api/logs", nil).Dial(context.Background())
	require.NoError(t, err)

	defer func() { require.NoError(t, conn.Close()) }()

	surface := &recordingSurface{}
	session := logview.NewSession(logview.DefaultOptions(), surface)

	events := conn.Events()
	for range 3 {
		session.HandleEvent(nextEvent(t, events))
	}

	require.Eventually(t, func() bool { return logHub.Stats().Subscribers == 1 }, eventTimeout, 10*time.Millisecond)
	logHub.Publish("INFO done")

	session.HandleEvent(nextEvent(t, events))

	assert.Equal(t, []string{
		logview.StreamOpenedMessage, "INFO start", "ERROR boom", "INFO done",
	}, plainLines(session.Entries()))
	assert.Len(t, surface.lines, 4)
}

func TestStreamLogs_KeepAliveIsNotAMessage(t *testing.T) {
	t.Parallel()

	logHub := hub.New(hub.DefaultHistorySize, hub.DefaultSubscriberBuffer)
	testServer := newTestServer(t, logHub)

	conn, err := stream.NewSSEDialer(testServer.URL+"/api/logs", nil).Dial(context.Background())
	require.NoError(t, err)

	defer func() { require.NoError(t, conn.Close()) }()

	events := conn.Events()
	assert.Equal(t, core.StreamOpened, nextEvent(t, events).Kind)

	// Several keep-alive intervals pass before the first line.
	time.Sleep(200 * time.Millisecond)
	logHub.Publish("INFO after idle")

	event := nextEvent(t, events)
	assert.Equal(t, core.StreamMessage, event.Kind)
	assert.JSONEq(t, `"INFO after idle"`, string(event.Data))
}

func TestStreamLogs_UnsubscribesOnDisconnect(t *testing.T) {
	t.Parallel()

	logHub := hub.New(hub.DefaultHistorySize, hub.DefaultSubscriberBuffer)
	testServer := newTestServer(t, logHub)

	conn, err := stream.NewSSEDialer(testServer.URL+"/api/logs", nil).Dial(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.StreamOpened, nextEvent(t, conn.Events()).Kind)
	require.Eventually(t, func() bool { return logHub.Stats().Subscribers == 1 }, eventTimeout, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return logHub.Stats().Subscribers == 0 }, eventTimeout, 10*time.Millisecond)
}

func TestHistoryAndHealth(t *testing.T) {
	t.Parallel()

	logHub := hub.New(2, 0)
	logHub.Publish("a")
	logHub.Publish("b")
	logHub.Publish("c")

	testServer := newTestServer(t, logHub)

	resp, err := http.Get(testServer.URL + "/api/logs/history")
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history server.HistoryResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Equal(t, []string{"b", "c"}, history.Lines)
	assert.Equal(t, uint64(3), history.Stats.Published)

	healthResp, err := http.Get(testServer.URL + "/health")
	require.NoError(t, err)

	defer healthResp.Body.Close()

	body, err := io.ReadAll(healthResp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func plainLines(entries []logview.Entry) []string {
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.Plain
	}

	return out
}

func TestCORS(t *testing.T) {
	t.Parallel()

	router := server.New(hub.New(0, 0), log.New(io.Discard)).
		WithAllowedOrigins([]string{"http://console.local"}).
		Router(io.Discard)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("Origin", "http://console.local")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "http://console.local", recorder.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("Origin", "http://elsewhere.local")

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
