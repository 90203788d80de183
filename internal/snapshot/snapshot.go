// Package snapshot saves the visible slice of the log view to the object store and announces
// it on NATS.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/tts-console/internal/core"
	"github.com/book-expert/tts-console/internal/logview"
	"github.com/book-expert/tts-console/internal/markup"
	"github.com/google/uuid"
)

// Supported snapshot formats.
const (
	FormatText = "text"
	FormatHTML = "html"
)

var (
	// ErrUnknownFormat indicates an unsupported snapshot format.
	ErrUnknownFormat = errors.New("unknown snapshot format")
	// ErrSubjectEmpty indicates that no announcement subject was configured.
	ErrSubjectEmpty = errors.New("snapshot subject cannot be empty")
)

// Publisher sends announcement messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// SavedEvent announces a stored snapshot.
type SavedEvent struct {
	Header      events.EventHeader `json:"header"`
	SnapshotKey string             `json:"snapshot_key"`
	Entries     int                `json:"entries"`
	Format      string             `json:"format"`
}

// Exporter renders entries, uploads them and publishes a SavedEvent.
type Exporter struct {
	store     core.SnapshotStore
	publisher Publisher
	subject   string
	format    string
	now       func() time.Time
}

// NewExporter creates an Exporter. An empty format means FormatText.
func NewExporter(store core.SnapshotStore, publisher Publisher, subject, format string) (*Exporter, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	if format == "" {
		format = FormatText
	}

	if format != FormatText && format != FormatHTML {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &Exporter{
		store:     store,
		publisher: publisher,
		subject:   subject,
		format:    format,
		now:       time.Now,
	}, nil
}

// Save stores entries under a new key and announces it.
func (e *Exporter) Save(ctx context.Context, entries []logview.Entry) (*SavedEvent, error) {
	key := fmt.Sprintf("logs-%s.%s", uuid.NewString(), e.extension())

	err := e.store.Upload(ctx, key, e.Render(entries))
	if err != nil {
		return nil, fmt.Errorf("failed to upload snapshot '%s': %w", key, err)
	}

	savedEvent := &SavedEvent{
		Header: events.EventHeader{
			Timestamp:  e.now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		SnapshotKey: key,
		Entries:     len(entries),
		Format:      e.format,
	}

	data, err := json.Marshal(savedEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot event: %w", err)
	}

	err = e.publisher.Publish(e.subject, data)
	if err != nil {
		return nil, fmt.Errorf("failed to publish snapshot event: %w", err)
	}

	return savedEvent, nil
}

// Render produces the snapshot document for entries.
func (e *Exporter) Render(entries []logview.Entry) []byte {
	var builder strings.Builder

	if e.format == FormatHTML {
		var translator markup.HTML

		builder.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>log snapshot</title></head>\n")
		builder.WriteString("<body style=\"background:#1e1e1e;color:#d4d4d4;font-family:monospace\">\n")

		for _, entry := range entries {
			builder.WriteString(translator.Render(entry.Rendered))
			builder.WriteByte('\n')
		}

		builder.WriteString("</body></html>\n")

		return []byte(builder.String())
	}

	for _, entry := range entries {
		builder.WriteString(entry.Plain)
		builder.WriteByte('\n')
	}

	return []byte(builder.String())
}

func (e *Exporter) extension() string {
	if e.format == FormatHTML {
		return "html"
	}

	return "txt"
}
