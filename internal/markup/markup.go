// Package markup converts terminal color codes embedded in log lines into display forms
// and derives the plain text used for matching.
package markup

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const sgrReset = "\x1b[0m"

// token is either a run of visible text or one complete escape sequence.
type token struct {
	text     string
	sequence bool
}

// tokenize splits raw into visible text and escape sequences with the same decoder that
// backs Strip, so every translator agrees with the plain form on what is text.
func tokenize(raw string) []token {
	var (
		tokens []token
		text   strings.Builder
		state  byte
	)

	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, token{text: text.String(), sequence: false})
			text.Reset()
		}
	}

	for len(raw) > 0 {
		seq, _, n, newState := ansi.DecodeSequence(raw, state, nil)
		state = newState

		if n <= 0 {
			seq, n = raw[:1], 1
		}

		if isEscape(seq) {
			flush()

			tokens = append(tokens, token{text: seq, sequence: true})
		} else {
			text.WriteString(seq)
		}

		raw = raw[n:]
	}

	flush()

	return tokens
}

// isEscape reports whether seq starts with ESC or a C1 control introducer.
func isEscape(seq string) bool {
	if seq == "" {
		return false
	}

	c := seq[0]

	return c == ansi.ESC || (c >= 0x80 && c <= 0x9f)
}

// Strip removes every escape sequence from raw, leaving the text a user would read.
func Strip(raw string) string {
	return ansi.Strip(raw)
}

// Terminal renders lines for a terminal surface. Color (SGR) sequences are kept, all other
// escape sequences are dropped so a line cannot move the cursor or retitle the window, and
// a styled line always ends with a reset so its colors do not bleed into the next line.
type Terminal struct{}

// Render returns the terminal display form of raw.
func (Terminal) Render(raw string) string {
	var builder strings.Builder

	styled := false

	for _, tok := range tokenize(raw) {
		if !tok.sequence {
			builder.WriteString(tok.text)

			continue
		}

		if isSGR(tok.text) {
			styled = true

			builder.WriteString(tok.text)
		}
	}

	out := builder.String()
	if styled && !strings.HasSuffix(out, sgrReset) {
		out += sgrReset
	}

	return out
}

// HasStyle reports whether raw carries at least one color sequence.
func HasStyle(raw string) bool {
	for _, tok := range tokenize(raw) {
		if tok.sequence && isSGR(tok.text) {
			return true
		}
	}

	return false
}

// sgrBody returns the parameter list of an SGR sequence and whether seq is one.
func sgrBody(seq string) (string, bool) {
	body, ok := strings.CutPrefix(seq, "\x1b[")
	if !ok {
		body, ok = strings.CutPrefix(seq, "\x9b")
		if !ok {
			return "", false
		}
	}

	body, ok = strings.CutSuffix(body, "m")
	if !ok || strings.Trim(body, "0123456789;:") != "" {
		return "", false
	}

	return body, true
}

func isSGR(seq string) bool {
	_, ok := sgrBody(seq)

	return ok
}

// sgrParams splits the parameter list of an SGR sequence. An empty list means reset.
func sgrParams(seq string) []string {
	body, _ := sgrBody(seq)
	if body == "" {
		return []string{"0"}
	}

	return strings.Split(body, ";")
}
