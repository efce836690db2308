package value

import "testing"

func TestArgsRoundTrip(t *testing.T) {
	t.Parallel()
	a := Args{
		Positional: []Value{Int(2), String("x")},
		Named: []Entry{
			{Key: "retries", Value: Int(3)},
			{Key: "dry_run", Value: Bool(true)},
		},
	}
	data, err := a.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"args":[2,"x"],"kwargs":{"retries":3,"dry_run":true}}`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}

	back, err := ParseArgs(data)
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if len(back.Positional) != 2 || len(back.Named) != 2 {
		t.Fatalf("unexpected shape: %+v", back)
	}
	if v, ok := back.Get("retries"); !ok {
		t.Fatal("missing kwarg retries")
	} else if n, _ := v.AsInt64(); n != 3 {
		t.Fatalf("retries = %d, want 3", n)
	}
}

func TestArgsEmpty(t *testing.T) {
	t.Parallel()
	var a Args
	if !a.IsEmpty() {
		t.Fatal("zero Args should be empty")
	}
	data, err := a.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(data) != `{"args":[],"kwargs":{}}` {
		t.Fatalf("marshal = %s", data)
	}
	back, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs(nil) error: %v", err)
	}
	if !back.IsEmpty() {
		t.Fatalf("ParseArgs(nil) = %+v, want empty", back)
	}
}

func TestArgsRejectsUnknownField(t *testing.T) {
	t.Parallel()
	if _, err := ParseArgs([]byte(`{"args":[],"extra":1}`)); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if _, err := ParseArgs([]byte(`{"args":{"not":"a list"}}`)); err == nil {
		t.Fatal("expected error for non-sequence args")
	}
	if _, err := ParseArgs([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}
