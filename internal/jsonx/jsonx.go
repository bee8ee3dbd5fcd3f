// Package jsonx holds the lenient JSON building blocks used to read simulation
// payloads: order-preserving objects, forgiving numbers and string lists.
package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape is the top-level JSON type of a raw value.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeNull
	ShapeObject
	ShapeArray
	ShapeString
	ShapeNumber
	ShapeBool
)

// ShapeOf reports the JSON type of raw by inspecting its first token.
func ShapeOf(raw []byte) Shape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ShapeInvalid
	}
	switch c := raw[0]; {
	case c == '{':
		return ShapeObject
	case c == '[':
		return ShapeArray
	case c == '"':
		return ShapeString
	case c == 'n':
		return ShapeNull
	case c == 't' || c == 'f':
		return ShapeBool
	case c == '-' || (c >= '0' && c <= '9'):
		return ShapeNumber
	}
	return ShapeInvalid
}

// Number decodes any JSON value into a finite float64. Null, booleans,
// unparsable strings, NaN and infinities all become zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number(ParseNumber(data))
	return nil
}

// Float returns the number as a float64.
func (n Number) Float() float64 { return float64(n) }

// ParseNumber is the function form of Number decoding.
func ParseNumber(raw []byte) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return Finite(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return Finite(v)
		}
	}
	return 0
}

// Finite maps NaN and ±Inf to zero.
func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Strings decodes a string, a list of scalars or an object into a list of
// display strings.
type Strings []string

func (s *Strings) UnmarshalJSON(data []byte) error {
	switch ShapeOf(data) {
	case ShapeNull:
		*s = nil
	case ShapeArray:
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if text := Text(item); text != "" {
				out = append(out, text)
			}
		}
		*s = out
	case ShapeObject:
		var obj Object[json.RawMessage]
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		out := make([]string, 0, len(obj))
		for _, f := range obj {
			out = append(out, f.Key+": "+Text(f.Value))
		}
		*s = out
	default:
		if text := Text(data); text != "" {
			*s = Strings{text}
		} else {
			*s = nil
		}
	}
	return nil
}

// Text renders a scalar as plain text and anything else as compact JSON.
func Text(raw []byte) string {
	switch ShapeOf(raw) {
	case ShapeNull, ShapeInvalid:
		return ""
	case ShapeString:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case ShapeNumber:
		return strconv.FormatFloat(ParseNumber(raw), 'f', -1, 64)
	case ShapeObject, ShapeArray:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return string(bytes.TrimSpace(raw))
}

// Field is one key/value pair of an Object.
type Field[T any] struct {
	Key   string
	Value T
}

// Object is a JSON object that remembers the order its keys appeared in.
// A repeated key keeps its first position and its last value.
type Object[T any] []Field[T]

func (o *Object[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("jsonx: expected object, got %v", tok)
	}
	out := Object[T]{}
	index := map[string]int{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("jsonx: unexpected key token %v", kt)
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("jsonx: field %q: %w", key, err)
		}
		if i, dup := index[key]; dup {
			out[i].Value = v
			continue
		}
		index[key] = len(out)
		out = append(out, Field[T]{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

func (o Object[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (o Object[T]) Get(key string) (T, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	var zero T
	return zero, false
}

// Keys returns the keys in document order.
func (o Object[T]) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}
