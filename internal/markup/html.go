package markup

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

var basicColors = [8]string{
	"#000000", "#cd3131", "#0dbc79", "#e5e510", "#2472c8", "#bc3fbc", "#11a8cd", "#e5e5e5",
}

var brightColors = [8]string{
	"#666666", "#f14c4c", "#23d18b", "#f5f543", "#3b8eea", "#d670d6", "#29b8db", "#ffffff",
}

// HTML renders a line as an HTML fragment: text is escaped, color sequences become inline
// styled spans and the whole line is wrapped in a div carrying its severity class.
type HTML struct{}

// Render returns the HTML display form of raw.
func (HTML) Render(raw string) string {
	var builder strings.Builder

	class := ClassOf(Strip(raw))
	if class == ClassNone {
		builder.WriteString(`<div class="log-line">`)
	} else {
		fmt.Fprintf(&builder, `<div class="log-line %s">`, class)
	}

	var state sgrState

	for _, tok := range tokenize(raw) {
		switch {
		case !tok.sequence:
			writeSpan(&builder, tok.text, state)
		case isSGR(tok.text):
			state.apply(sgrParams(tok.text))
		}
	}

	builder.WriteString("</div>")

	return builder.String()
}

func writeSpan(builder *strings.Builder, text string, state sgrState) {
	if text == "" {
		return
	}

	style := state.css()
	if style == "" {
		builder.WriteString(html.EscapeString(text))

		return
	}

	fmt.Fprintf(builder, `<span style="%s">%s</span>`, style, html.EscapeString(text))
}

type sgrState struct {
	foreground string
	background string
	bold       bool
	dim        bool
	italic     bool
	underline  bool
}

func (s *sgrState) css() string {
	var parts []string

	if s.foreground != "" {
		parts = append(parts, "color:"+s.foreground)
	}

	if s.background != "" {
		parts = append(parts, "background-color:"+s.background)
	}

	if s.bold {
		parts = append(parts, "font-weight:bold")
	}

	if s.dim {
		parts = append(parts, "opacity:0.7")
	}

	if s.italic {
		parts = append(parts, "font-style:italic")
	}

	if s.underline {
		parts = append(parts, "text-decoration:underline")
	}

	return strings.Join(parts, ";")
}

// apply folds one SGR parameter list into the state. Unknown codes are ignored.
func (s *sgrState) apply(params []string) {
	for i := 0; i < len(params); i++ {
		code, err := strconv.Atoi(params[i])
		if err != nil {
			if params[i] != "" {
				continue
			}

			code = 0
		}

		switch {
		case code == 0:
			*s = sgrState{}
		case code == 1:
			s.bold = true
		case code == 2:
			s.dim = true
		case code == 3:
			s.italic = true
		case code == 4:
			s.underline = true
		case code == 22:
			s.bold = false
			s.dim = false
		case code == 23:
			s.italic = false
		case code == 24:
			s.underline = false
		case code >= 30 && code <= 37:
			s.foreground = basicColors[code-30]
		case code == 39:
			s.foreground = ""
		case code >= 40 && code <= 47:
			s.background = basicColors[code-40]
		case code == 49:
			s.background = ""
		case code >= 90 && code <= 97:
			s.foreground = brightColors[code-90]
		case code >= 100 && code <= 107:
			s.background = brightColors[code-100]
		case code == 38 || code == 48:
			color, consumed := extendedColor(params[i+1:])
			i += consumed

			if color == "" {
				continue
			}

			if code == 38 {
				s.foreground = color
			} else {
				s.background = color
			}
		}
	}
}

// extendedColor decodes the arguments following a 38 or 48 code: either "5;n" for the
// 256-color palette or "2;r;g;b" for true color. It returns the CSS color and how many
// parameters it consumed.
func extendedColor(params []string) (string, int) {
	if len(params) == 0 {
		return "", 0
	}

	switch params[0] {
	case "5":
		if len(params) < 2 {
			return "", len(params)
		}

		index, err := strconv.Atoi(params[1])
		if err != nil || index < 0 || index > 255 {
			return "", 2
		}

		return paletteColor(index), 2
	case "2":
		if len(params) < 4 {
			return "", len(params)
		}

		rgb := [3]int{}

		for j := range rgb {
			value, err := strconv.Atoi(params[j+1])
			if err != nil || value < 0 || value > 255 {
				return "", 4
			}

			rgb[j] = value
		}

		return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]), 4
	default:
		return "", 1
	}
}

// paletteColor maps an xterm 256-color index to a CSS color.
func paletteColor(index int) string {
	switch {
	case index < 8:
		return basicColors[index]
	case index < 16:
		return brightColors[index-8]
	case index < 232:
		cube := index - 16
		levels := [6]int{0, 95, 135, 175, 215, 255}

		return fmt.Sprintf("#%02x%02x%02x", levels[cube/36], levels[(cube/6)%6], levels[cube%6])
	default:
		gray := 8 + (index-232)*10

		return fmt.Sprintf("#%02x%02x%02x", gray, gray, gray)
	}
}
