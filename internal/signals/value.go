// Package signals models behavioral-signal payloads as a closed tagged-value
// union and implements the categorization and display rules of the signal
// review screen.
package signals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindString
	KindList
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one signal value: null, number, bool, string, a list of values or
// an ordered map of values. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	b    bool
	str  string
	list []Value
	m    *Map
}

func Null() Value { return Value{} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func MapValue(m *Map) Value { return Value{kind: KindMap, m: m} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Float() float64 { return v.num }
func (v Value) Boolean() bool { return v.b }
func (v Value) Text() string { return v.str }
func (v Value) Items() []Value { return v.list }

// Map returns the map variant, or nil when v is not a map.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Map is a string-keyed mapping that remembers insertion order, so snapshots
// render in the order the server sent them.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap creates an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set adds or replaces a key. Replacing keeps the original position.
func (m *Map) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get looks up a key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MarshalJSON encodes the value, preserving map key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object; null decodes to an empty map.
func (m *Map) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	switch v.kind {
	case KindNull:
		*m = *NewMap()
	case KindMap:
		*m = *v.m
	default:
		return fmt.Errorf("signals: expected object, got %s", v.kind)
	}
	return nil
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return MapValue(m).MarshalJSON()
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("signals: invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // ]
				return Value{}, err
			}
			return List(items...), nil
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("signals: unexpected object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, item)
			}
			if _, err := dec.Token(); err != nil { // }
				return Value{}, err
			}
			return MapValue(m), nil
		}
	}
	return Value{}, fmt.Errorf("signals: unexpected token %v", tok)
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, key := range v.m.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			item, _ := v.m.Get(key)
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("signals: cannot encode kind %s", v.kind)
	}
	return nil
}
