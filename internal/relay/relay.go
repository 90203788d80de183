// Package relay forwards log lines published on NATS into the log hub.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/valyala/fastjson"
)

// ErrSubjectEmpty indicates that no subject was configured.
var ErrSubjectEmpty = errors.New("log subject cannot be empty")

// Publisher receives relayed lines.
type Publisher interface {
	Publish(line string)
}

// Relay subscribes to a NATS subject and publishes every message as one or more log lines.
type Relay struct {
	natsConnection *nats.Conn
	subject        string
	sink           Publisher
	log            *logger.Logger
	parsers        fastjson.ParserPool
}

// New creates a Relay from subject to sink.
func New(natsConnection *nats.Conn, subject string, sink Publisher, log *logger.Logger) (*Relay, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &Relay{
		natsConnection: natsConnection,
		subject:        subject,
		sink:           sink,
		log:            log,
		parsers:        fastjson.ParserPool{},
	}, nil
}

// Run relays messages until ctx is cancelled, then drains the subscription.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.natsConnection.Subscribe(r.subject, r.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", r.subject, err)
	}

	r.log.Info("Relaying log lines from subject: %s", r.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

// handleMessage accepts either raw text or a JSON-encoded string. Multi-line payloads are
// split so that every published item is a single line.
func (r *Relay) handleMessage(msg *nats.Msg) {
	text := r.decode(msg.Data)

	for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		r.sink.Publish(line)
	}
}

func (r *Relay) decode(data []byte) string {
	parser := r.parsers.Get()
	defer r.parsers.Put(parser)

	value, err := parser.ParseBytes(data)
	if err != nil || value.Type() != fastjson.TypeString {
		return string(data)
	}

	text, err := value.StringBytes()
	if err != nil {
		return string(data)
	}

	return string(text)
}
