// Package logview implements the log console's stream buffer and filter pipeline: a bounded
// history of received lines, the filter that selects the visible slice, and the session that
// ties both to a painting surface and a stream connection.
package logview

import (
	"github.com/book-expert/tts-console/internal/core"
	"github.com/book-expert/tts-console/internal/markup"
	"github.com/valyala/fastjson"
)

// Entry is one received log line in its display and plain-text forms.
type Entry struct {
	Rendered string
	Plain    string
}

// NewEntry builds an Entry from a raw line using translator for the display form.
func NewEntry(raw string, translator core.Translator) Entry {
	return Entry{
		Rendered: translator.Render(raw),
		Plain:    markup.Strip(raw),
	}
}

// decodePayload returns the string carried by a JSON-encoded string payload. Anything that
// is not a valid JSON string is returned literally.
func decodePayload(parser *fastjson.Parser, payload []byte) string {
	value, err := parser.ParseBytes(payload)
	if err != nil || value.Type() != fastjson.TypeString {
		return string(payload)
	}

	text, err := value.StringBytes()
	if err != nil {
		return string(payload)
	}

	return string(text)
}
