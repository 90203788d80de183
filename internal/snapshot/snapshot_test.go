// Package snapshot_test tests the log view snapshot exporter.
package snapshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/tts-console/internal/logview"
	"github.com/book-expert/tts-console/internal/markup"
	"github.com/book-expert/tts-console/internal/objectstore"
	"github.com/book-expert/tts-console/internal/snapshot"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockUpload = errors.New("mock upload failure")

// mockStore is an in-memory snapshot store.
type mockStore struct {
	objects map[string][]byte
	err     error
}

func (m *mockStore) Download(_ context.Context, key string) ([]byte, error) {
	return m.objects[key], nil
}

func (m *mockStore) Upload(_ context.Context, key string, data []byte) error {
	if m.err != nil {
		return m.err
	}

	m.objects[key] = data

	return nil
}

type publishedMessage struct {
	subject string
	data    []byte
}

type mockPublisher struct {
	messages []publishedMessage
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.messages = append(m.messages, publishedMessage{subject: subject, data: data})

	return nil
}

func testEntries() []logview.Entry {
	terminal := markup.Terminal{}

	return []logview.Entry{
		logview.NewEntry("INFO start", terminal),
		logview.NewEntry("\x1b[31mERROR\x1b[0m <boom>", terminal),
	}
}

func TestNewExporter_Validation(t *testing.T) {
	t.Parallel()

	_, err := snapshot.NewExporter(&mockStore{}, &mockPublisher{}, "", snapshot.FormatText)
	require.ErrorIs(t, err, snapshot.ErrSubjectEmpty)

	_, err = snapshot.NewExporter(&mockStore{}, &mockPublisher{}, "logs.snapshot.saved", "pdf")
	require.ErrorIs(t, err, snapshot.ErrUnknownFormat)
}

func TestExporter_SaveText(t *testing.T) {
	t.Parallel()

	store := &mockStore{objects: map[string][]byte{}}
	publisher := &mockPublisher{}

	exporter, err := snapshot.NewExporter(store, publisher, "logs.snapshot.saved", "")
	require.NoError(t, err)

	savedEvent, err := exporter.Save(context.Background(), testEntries())
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(savedEvent.SnapshotKey, ".txt"))
	assert.Equal(t, 2, savedEvent.Entries)
	assert.Equal(t, snapshot.FormatText, savedEvent.Format)
	assert.NotEmpty(t, savedEvent.Header.EventID)
	assert.Equal(t, "INFO start\nERROR <boom>\n", string(store.objects[savedEvent.SnapshotKey]))

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "logs.snapshot.saved", publisher.messages[0].subject)

	var announced snapshot.SavedEvent

	require.NoError(t, json.Unmarshal(publisher.messages[0].data, &announced))
	assert.Equal(t, savedEvent.SnapshotKey, announced.SnapshotKey)
}

func TestExporter_RenderHTML(t *testing.T) {
	t.Parallel()

	exporter, err := snapshot.NewExporter(&mockStore{}, &mockPublisher{}, "subject", snapshot.FormatHTML)
	require.NoError(t, err)

	document := string(exporter.Render(testEntries()))

	assert.Contains(t, document, "<!DOCTYPE html>")
	assert.Contains(t, document, "&lt;boom&gt;")
	assert.Contains(t, document, "<span style=")
	assert.NotContains(t, document, "\x1b[")
}

func TestExporter_UploadFailureIsNotAnnounced(t *testing.T) {
	t.Parallel()

	publisher := &mockPublisher{}

	exporter, err := snapshot.NewExporter(&mockStore{err: errMockUpload}, publisher, "subject", snapshot.FormatText)
	require.NoError(t, err)

	_, err = exporter.Save(context.Background(), testEntries())
	require.ErrorIs(t, err, errMockUpload)
	assert.Empty(t, publisher.messages)
}

func TestExporter_SaveToJetStream(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	defer natsServer.Shutdown()

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "LOG_SNAPSHOTS")
	require.NoError(t, err)

	defer func() { require.NoError(t, store.Close()) }()

	announcements, err := natsConnection.SubscribeSync("logs.snapshot.saved")
	require.NoError(t, err)

	exporter, err := snapshot.NewExporter(store, natsConnection, "logs.snapshot.saved", snapshot.FormatText)
	require.NoError(t, err)

	savedEvent, err := exporter.Save(context.Background(), testEntries())
	require.NoError(t, err)

	msg, err := announcements.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var announced snapshot.SavedEvent

	require.NoError(t, json.Unmarshal(msg.Data, &announced))
	assert.Equal(t, savedEvent.SnapshotKey, announced.SnapshotKey)

	data, err := store.Download(context.Background(), announced.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, "INFO start\nERROR <boom>\n", string(data))
}
