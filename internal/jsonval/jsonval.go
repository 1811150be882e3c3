// Package jsonval implements the small JSON document model used for the
// serialized event output. It is a closed set of value kinds: Number,
// Bool, String, Map, and Array. A value tree is built once per document
// and encoded once; values are not mutated after encoding.
//
// Maps iterate their keys alphabetically and arrays preserve append order,
// so document output is deterministic. The rendered form is newline
// separated with no trailing commas.
package jsonval

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
)

// Value is one node of a JSON document tree.
type Value interface {
	// Encode writes the standard JSON text of the value to w.
	Encode(w io.Writer) error
}

// Number is a 64-bit integer JSON value.
type Number int64

// Encode writes the number as a decimal literal.
func (n Number) Encode(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(n), 10))
	return err
}

// Bool is a boolean JSON value.
type Bool bool

// Encode writes true or false.
func (b Bool) Encode(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatBool(bool(b)))
	return err
}

// String is a string JSON value.
type String string

// Encode writes the quoted, escaped string.
func (s String) Encode(w io.Writer) error {
	data, err := json.Marshal(string(s))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Map is a JSON object with string keys. Keys are encoded in alphabetical
// order regardless of insertion order. Child values are owned exclusively
// by the map.
type Map struct {
	entries map[string]Value
}

// NewMap creates an empty object.
func NewMap() *Map {
	return &Map{entries: make(map[string]Value)}
}

// Set adds or replaces the value for key.
func (m *Map) Set(key string, v Value) {
	m.entries[key] = v
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Encode writes the object with one entry per line and no trailing comma.
func (m *Map) Encode(w io.Writer) error {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if _, err := io.WriteString(w, "{\n"); err != nil {
		return err
	}
	for i, k := range keys {
		if i > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		if err := (String(k)).Encode(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, " : "); err != nil {
			return err
		}
		if err := m.entries[k].Encode(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n}")
	return err
}

// Array is a JSON array preserving append order. Child values are owned
// exclusively by the array.
type Array struct {
	items []Value
}

// NewArray creates an empty array.
func NewArray() *Array {
	return &Array{}
}

// Append adds a value to the end of the array.
func (a *Array) Append(v Value) {
	a.items = append(a.items, v)
}

// Len returns the number of items.
func (a *Array) Len() int {
	return len(a.items)
}

// Encode writes the array with one item per line and no trailing comma.
func (a *Array) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	for i, v := range a.items {
		if i > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		if err := v.Encode(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n]")
	return err
}
