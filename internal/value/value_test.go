package value

import (
	"encoding/json"
	"testing"
)

func TestRoundTripPreservesShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "null", raw: `null`},
		{name: "bool", raw: `true`},
		{name: "int", raw: `42`},
		{name: "big int", raw: `9007199254740993`},
		{name: "float", raw: `3.25`},
		{name: "string", raw: `"hello"`},
		{name: "seq", raw: `[1,"two",null,[3]]`},
		{name: "map", raw: `{"a":1,"b":{"c":[true]}}`},
		{name: "empty seq", raw: `[]`},
		{name: "empty map", raw: `{}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromJSON([]byte(tt.raw))
			if err != nil {
				t.Fatalf("FromJSON(%s) error: %v", tt.raw, err)
			}
			out, err := ToJSON(v)
			if err != nil {
				t.Fatalf("ToJSON error: %v", err)
			}
			if string(out) != tt.raw {
				t.Fatalf("round trip = %s, want %s", out, tt.raw)
			}
		})
	}
}

func TestMapKeyOrderPreserved(t *testing.T) {
	t.Parallel()
	raw := `{"zebra":1,"apple":2,"mango":3}`
	v, err := FromJSON([]byte(raw))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	ents := v.Entries()
	want := []string{"zebra", "apple", "mango"}
	if len(ents) != len(want) {
		t.Fatalf("entries = %d, want %d", len(ents), len(want))
	}
	for i, k := range want {
		if ents[i].Key != k {
			t.Fatalf("entry %d key = %s, want %s", i, ents[i].Key, k)
		}
	}
	out, _ := ToJSON(v)
	if string(out) != raw {
		t.Fatalf("serialized = %s, want %s", out, raw)
	}
}

func TestNumberPrecisionKept(t *testing.T) {
	t.Parallel()
	// float64 would round this; json.Number must not.
	raw := `123456789012345678901234567890`
	v, err := FromJSON([]byte(raw))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	n, ok := v.AsNumber()
	if !ok {
		t.Fatal("expected a number")
	}
	if n.String() != raw {
		t.Fatalf("number = %s, want %s", n, raw)
	}
}

func TestAccessorsRejectWrongKind(t *testing.T) {
	t.Parallel()
	if _, ok := String("x").AsBool(); ok {
		t.Fatal("AsBool on string should fail")
	}
	if _, ok := Bool(true).AsString(); ok {
		t.Fatal("AsString on bool should fail")
	}
	if _, ok := Int(7).AsString(); ok {
		t.Fatal("AsString on number should fail")
	}
	if items := Int(7).Items(); items != nil {
		t.Fatalf("Items on number = %v, want nil", items)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	m := Map(
		Entry{Key: "host", Value: String("localhost")},
		Entry{Key: "port", Value: Int(8080)},
	)
	v, ok := m.Lookup("port")
	if !ok {
		t.Fatal("Lookup(port) missed")
	}
	if n, _ := v.AsInt64(); n != 8080 {
		t.Fatalf("port = %d, want 8080", n)
	}
	if _, ok := m.Lookup("absent"); ok {
		t.Fatal("Lookup(absent) should miss")
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "nulls", a: Null(), b: Null(), want: true},
		{name: "same int", a: Int(5), b: Int(5), want: true},
		{name: "int vs float text", a: Int(5), b: Float(5.5), want: false},
		{name: "kind mismatch", a: Int(1), b: String("1"), want: false},
		{name: "same seq", a: Seq(Int(1), Int(2)), b: Seq(Int(1), Int(2)), want: true},
		{name: "seq length", a: Seq(Int(1)), b: Seq(Int(1), Int(2)), want: false},
		{
			name: "map order matters",
			a:    Map(Entry{Key: "a", Value: Int(1)}, Entry{Key: "b", Value: Int(2)}),
			b:    Map(Entry{Key: "b", Value: Int(2)}, Entry{Key: "a", Value: Int(1)}),
			want: false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromAny(t *testing.T) {
	t.Parallel()
	v, err := FromAny(map[string]any{"b": 2, "a": []any{1, "x", nil}})
	if err != nil {
		t.Fatalf("FromAny error: %v", err)
	}
	// Go map keys come out sorted for determinism.
	out, _ := ToJSON(v)
	want := `{"a":[1,"x",null],"b":2}`
	if string(out) != want {
		t.Fatalf("FromAny serialized = %s, want %s", out, want)
	}

	if _, err := FromAny(make(chan int)); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{``, `{`, `[1,`, `{"a"}`} {
		if _, err := FromJSON([]byte(raw)); err == nil {
			t.Fatalf("FromJSON(%q) should fail", raw)
		}
	}
}

func TestValueInsideStdJSON(t *testing.T) {
	t.Parallel()
	type wrapper struct {
		Payload Value `json:"payload"`
	}
	var w wrapper
	if err := json.Unmarshal([]byte(`{"payload":{"n":1.50}}`), &w); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	n, ok := w.Payload.Lookup("n")
	if !ok {
		t.Fatal("missing key n")
	}
	num, _ := n.AsNumber()
	if num.String() != "1.50" {
		t.Fatalf("number text = %s, want 1.50", num)
	}
}
