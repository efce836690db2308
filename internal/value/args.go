package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Args carries a call's positional and named arguments. Named arguments keep
// their submission order.
type Args struct {
	Positional []Value
	Named      []Entry
}

// Named argument lookup.
func (a Args) Get(name string) (Value, bool) {
	for _, e := range a.Named {
		if e.Key == name {
			return e.Value, true
		}
	}
	return Value{}, false
}

func (a Args) IsEmpty() bool { return len(a.Positional) == 0 && len(a.Named) == 0 }

// MarshalJSON renders {"args":[...],"kwargs":{...}}, the wire and storage
// shape of a submission payload's argument section.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"args":`)
	if err := (Value{kind: KindSeq, seq: a.Positional}).encode(&buf); err != nil {
		return nil, err
	}
	buf.WriteString(`,"kwargs":`)
	if err := (Value{kind: KindMap, ent: a.Named}).encode(&buf); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Args) UnmarshalJSON(data []byte) error {
	v, err := FromJSON(data)
	if err != nil {
		return err
	}
	if v.Kind() != KindMap {
		return fmt.Errorf("value: arguments must be an object, got %s", v.Kind())
	}
	var out Args
	for _, e := range v.ent {
		switch e.Key {
		case "args":
			if e.Value.Kind() != KindSeq && !e.Value.IsNull() {
				return fmt.Errorf("value: args must be a sequence, got %s", e.Value.Kind())
			}
			out.Positional = e.Value.seq
		case "kwargs":
			if e.Value.Kind() != KindMap && !e.Value.IsNull() {
				return fmt.Errorf("value: kwargs must be a mapping, got %s", e.Value.Kind())
			}
			out.Named = e.Value.ent
		default:
			return fmt.Errorf("value: unknown argument field %q", e.Key)
		}
	}
	*a = out
	return nil
}

// ParseArgs decodes the canonical argument JSON produced by MarshalJSON.
func ParseArgs(data []byte) (Args, error) {
	if len(data) == 0 {
		return Args{}, nil
	}
	var a Args
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Args{}, err
	}
	if err := a.UnmarshalJSON(raw); err != nil {
		return Args{}, err
	}
	return a, nil
}
