// Package motd decodes Minecraft styled text into a normalized list of styled segments.
//
// Two inputs are supported: legacy strings using the '§' formatting marker
// (Java plain descriptions and Bedrock MOTD lines) and JSON text components
// (Java structured descriptions). Both produce the same Text value.
package motd

import "strings"

// Marker starts a legacy formatting code.
const Marker = '§'

// Style is the formatting applied to a segment.
type Style struct {
	Color         Color `json:"color,omitempty"`
	Bold          bool  `json:"bold,omitempty"`
	Italic        bool  `json:"italic,omitempty"`
	Underlined    bool  `json:"underlined,omitempty"`
	Strikethrough bool  `json:"strikethrough,omitempty"`
	Obfuscated    bool  `json:"obfuscated,omitempty"`
}

// Segment is a run of text sharing one style.
type Segment struct {
	Text string `json:"text"`
	Style
}

// Text is a decoded MOTD.
type Text []Segment

// Plain returns the text with all formatting removed.
func (t Text) Plain() string {
	var b strings.Builder
	for _, seg := range t {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// String implements fmt.Stringer.
func (t Text) String() string {
	return t.Plain()
}

// append adds a segment, merging it into the previous one when styles match.
func (t Text) append(text string, style Style) Text {
	if text == "" {
		return t
	}
	if n := len(t); n > 0 && t[n-1].Style == style {
		t[n-1].Text += text
		return t
	}
	return append(t, Segment{Text: text, Style: style})
}

// ParseLegacy decodes a string containing '§' formatting codes.
func ParseLegacy(s string) Text {
	return parseLegacy(nil, s, Style{})
}

// parseLegacy decodes s starting from base and appends the result to dst.
// Every marker consumes itself and the following character.
func parseLegacy(dst Text, s string, base Style) Text {
	var (
		buf   strings.Builder
		style = base
		runes = []rune(s)
	)

	for i := 0; i < len(runes); i++ {
		if runes[i] == Marker && i+1 < len(runes) {
			dst = dst.append(buf.String(), style)
			buf.Reset()

			style = applyCode(style, runes[i+1])
			i++
			continue
		}
		buf.WriteRune(runes[i])
	}

	return dst.append(buf.String(), style)
}

// applyCode returns style updated by one legacy code. Colour codes keep
// the active decorations; only 'r' clears them.
func applyCode(style Style, code rune) Style {
	if code >= 'A' && code <= 'Z' {
		code += 'a' - 'A'
	}

	if name, ok := legacyColors[code]; ok {
		style.Color = name
		return style
	}

	switch code {
	case 'k':
		style.Obfuscated = true
	case 'l':
		style.Bold = true
	case 'm':
		style.Strikethrough = true
	case 'n':
		style.Underlined = true
	case 'o':
		style.Italic = true
	case 'r':
		style = Style{}
	}

	return style
}
