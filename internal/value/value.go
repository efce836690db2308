// Package value implements the tagged value union used at the storage and
// invocation boundaries: null, bool, number, string, sequence, mapping.
//
// Values round-trip through JSON without loss: numbers are kept as
// json.Number (no float64 coercion) and mapping key order is preserved.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Entry is one key/value pair of an ordered mapping.
type Entry struct {
	Key   string
	Value Value
}

// Value is an immutable tagged union. The zero value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	seq  []Value
	ent  []Entry
}

func Null() Value          { return Value{} }
func Bool(b bool) Value    { return Value{kind: KindBool, b: b} }
func Int(n int64) Value    { return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(n, 10))} }
func Float(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }
func String(s string) Value      { return Value{kind: KindString, str: s} }

func Seq(items ...Value) Value {
	return Value{kind: KindSeq, seq: append([]Value(nil), items...)}
}

func Map(entries ...Entry) Value {
	return Value{kind: KindMap, ent: append([]Entry(nil), entries...)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.num, true
}

func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := v.num.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) AsFloat64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Items returns the sequence elements, or nil for non-sequences.
func (v Value) Items() []Value {
	if v.kind != KindSeq {
		return nil
	}
	return append([]Value(nil), v.seq...)
}

// Entries returns the mapping entries in insertion order, or nil for non-maps.
func (v Value) Entries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	return append([]Entry(nil), v.ent...)
}

// Lookup finds a mapping entry by key.
func (v Value) Lookup(key string) (Value, bool) {
	for _, e := range v.ent {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Equal compares two values structurally. Numbers compare by their literal
// representation, so 1 and 1.0 are distinct (matching the round-trip
// contract, which never rewrites number literals).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.ent) != len(b.ent) {
			return false
		}
		for i := range a.ent {
			if a.ent[i].Key != b.ent[i].Key || !Equal(a.ent[i].Value, b.ent[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts ordinary Go data (as produced by encoding/json or yaml
// decoding into any) to a Value. Map keys are sorted for determinism since
// Go maps carry no order.
func FromAny(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return Number(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case []any:
		items := make([]Value, 0, len(x))
		for _, it := range x {
			v, err := FromAny(it)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{kind: KindSeq, seq: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ent := make([]Entry, 0, len(keys))
		for _, k := range keys {
			v, err := FromAny(x[k])
			if err != nil {
				return Value{}, err
			}
			ent = append(ent, Entry{Key: k, Value: v})
		}
		return Value{kind: KindMap, ent: ent}, nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", in)
	}
}

// ---- JSON round-trip ----

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.num == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(string(v.num))
		}
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindSeq:
		buf.WriteByte('[')
		for i, it := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, e := range v.ent {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(e.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := e.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	got, err := decodeValue(dec)
	if err != nil {
		return err
	}
	// Trailing garbage after the first value is a malformed document.
	if dec.More() {
		return fmt.Errorf("value: trailing data after JSON value")
	}
	*v = got
	return nil
}

// FromJSON parses a single JSON document into a Value.
func FromJSON(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

// ToJSON renders a Value as compact JSON.
func ToJSON(v Value) ([]byte, error) { return v.MarshalJSON() }

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				it, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, it)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return Value{}, err
			}
			return Value{kind: KindSeq, seq: items}, nil
		case '{':
			var ent []Entry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("value: non-string object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				ent = append(ent, Entry{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return Value{}, err
			}
			return Value{kind: KindMap, ent: ent}, nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected token %v", tok)
}
