package fivem

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Int decodes a JSON number or a numeric string. Anything else decodes to 0.
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*i = Int(v)
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// booleans, objects and arrays are not counts
		return nil
	}
	*i = Int(f)

	return nil
}

// Ptr returns the value as *int, nil when i is nil.
func (i *Int) Ptr() *int {
	if i == nil {
		return nil
	}
	v := int(*i)
	return &v
}

// Bool decodes a JSON boolean or a string such as "true", "1" or "yes".
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case 't':
		*b = true
		return nil
	case 'f':
		*b = false
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Bool(parseBool(s))
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*b = f != 0
	}
	return nil
}

// parseBool treats strings starting with y, t or a non-zero digit as true.
func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "+-0")
	if s == "" {
		return false
	}
	switch c := s[0]; {
	case c == 'y', c == 'Y', c == 't', c == 'T':
		return true
	case c >= '1' && c <= '9':
		return true
	}
	return false
}
