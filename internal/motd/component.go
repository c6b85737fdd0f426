package motd

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrDescription is returned when a description is neither a string nor a component object.
var ErrDescription = errors.New("motd: description is neither string nor object")

// Description is a server description: PlainDescription or ComponentDescription.
type Description interface {
	// Segments decodes the description into styled text.
	Segments() Text
	isDescription()
}

// PlainDescription is a bare string, possibly with '§' codes.
type PlainDescription string

// Segments implements Description.
func (d PlainDescription) Segments() Text {
	return ParseLegacy(string(d))
}

func (PlainDescription) isDescription() {}

// ComponentDescription is a structured JSON text component.
type ComponentDescription struct {
	Component
}

// Segments implements Description.
func (d ComponentDescription) Segments() Text {
	return d.Component.Segments(Style{})
}

func (ComponentDescription) isDescription() {}

// Component is a JSON text component. Nil flags inherit from the parent.
type Component struct {
	Bold          *bool   `json:"bold,omitempty"`
	Italic        *bool   `json:"italic,omitempty"`
	Underlined    *bool   `json:"underlined,omitempty"`
	Strikethrough *bool   `json:"strikethrough,omitempty"`
	Obfuscated    *bool   `json:"obfuscated,omitempty"`
	Text          string  `json:"text"`
	Color         string  `json:"color,omitempty"`
	Extra         []Extra `json:"extra,omitempty"`
}

// Extra is a child of a component: either a bare string or a nested component.
type Extra struct {
	Component *Component
	Text      string
}

// UnmarshalJSON decodes an object first and falls back to a string.
func (e *Extra) UnmarshalJSON(data []byte) error {
	var c Component
	if err := unmarshalObject(data, &c); err == nil {
		e.Component = &c
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Text = s
		return nil
	}

	return ErrDescription
}

// MarshalJSON encodes the active variant.
func (e Extra) MarshalJSON() ([]byte, error) {
	if e.Component != nil {
		return json.Marshal(e.Component)
	}
	return json.Marshal(e.Text)
}

// Segments decodes the component tree, inheriting unset styles from parent.
func (c Component) Segments(parent Style) Text {
	return c.appendSegments(nil, parent)
}

func (c Component) appendSegments(dst Text, parent Style) Text {
	style := c.style(parent)
	dst = parseLegacy(dst, c.Text, style)

	for _, extra := range c.Extra {
		if extra.Component != nil {
			dst = extra.Component.appendSegments(dst, style)
			continue
		}
		dst = parseLegacy(dst, extra.Text, style)
	}

	return dst
}

func (c Component) style(parent Style) Style {
	style := parent
	if color := ParseColor(c.Color); color != "" {
		style.Color = color
	}
	override(&style.Bold, c.Bold)
	override(&style.Italic, c.Italic)
	override(&style.Underlined, c.Underlined)
	override(&style.Strikethrough, c.Strikethrough)
	override(&style.Obfuscated, c.Obfuscated)
	return style
}

func override(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// RawDescription adapts a Description for JSON decoding.
type RawDescription struct {
	Description
}

// UnmarshalJSON tries the structured object form, then the bare string form.
func (d *RawDescription) UnmarshalJSON(data []byte) error {
	var c Component
	if err := unmarshalObject(data, &c); err == nil {
		d.Description = ComponentDescription{Component: c}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Description = PlainDescription(s)
		return nil
	}

	return ErrDescription
}

// MarshalJSON encodes the active variant.
func (d RawDescription) MarshalJSON() ([]byte, error) {
	switch v := d.Description.(type) {
	case ComponentDescription:
		return json.Marshal(v.Component)
	case PlainDescription:
		return json.Marshal(string(v))
	default:
		return []byte("null"), nil
	}
}

// Segments decodes the wrapped description; an absent description is empty text.
func (d RawDescription) Segments() Text {
	if d.Description == nil {
		return nil
	}
	return d.Description.Segments()
}

// unmarshalObject decodes data into v only when data is a JSON object.
func unmarshalObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrDescription
	}
	return json.Unmarshal(trimmed, v)
}
