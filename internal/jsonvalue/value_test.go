package jsonvalue

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_DistinguishesIntAndDouble(t *testing.T) {
	v, err := Parse([]byte(`{"a":1,"b":1.5,"c":2e3,"d":"x","e":[true,null]}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	a, _ := v.Field("a")
	if a.Kind() != KindInt {
		t.Fatalf("a kind = %v, want int", a.Kind())
	}
	b, _ := v.Field("b")
	if f, ok := b.DoubleValue(); !ok || f != 1.5 {
		t.Fatalf("b = %v, want double 1.5", b)
	}
	c, _ := v.Field("c")
	if c.Kind() != KindDouble {
		t.Fatalf("c kind = %v, want double", c.Kind())
	}
	e, _ := v.Field("e")
	items, ok := e.ArrayValue()
	if !ok || len(items) != 2 || !items[1].IsNull() {
		t.Fatalf("e = %v, want [true,null]", e)
	}
}

func TestMarshal_RoundTripsStructurally(t *testing.T) {
	original := Object(map[string]Value{
		"ids":    Ints([]int{3, 1}),
		"ratio":  Double(2),
		"name":   String("ubuntu \"iso\""),
		"paused": Bool(false),
		"nested": Object(map[string]Value{"x": Null()}),
	})
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var decoded Value
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !decoded.Equal(original) {
		t.Fatalf("round trip = %s, want %s", decoded, original)
	}
	if !strings.Contains(string(data), `"ratio":2.0`) {
		t.Fatalf("encoded = %s, want integral double kept as 2.0", data)
	}
}

func TestEqual_KindsDiffer(t *testing.T) {
	if Int(1).Equal(Double(1)) {
		t.Fatal("Int(1) should not equal Double(1)")
	}
	if !Null().Equal(Value{}) {
		t.Fatal("zero Value should equal Null()")
	}
	if Object(map[string]Value{"a": Int(1)}).Equal(Object(map[string]Value{"b": Int(1)})) {
		t.Fatal("objects with different keys should differ")
	}
}

func TestNumberValue_AcceptsBothEncodings(t *testing.T) {
	if n, ok := Int(7).NumberValue(); !ok || n != 7 {
		t.Fatalf("NumberValue(Int) = %v,%v", n, ok)
	}
	if n, ok := Double(7.25).NumberValue(); !ok || n != 7.25 {
		t.Fatalf("NumberValue(Double) = %v,%v", n, ok)
	}
	if _, ok := String("7").NumberValue(); ok {
		t.Fatal("NumberValue(String) should fail")
	}
}

func TestRedacted_PreservesKeysAndNonStrings(t *testing.T) {
	v := Object(map[string]Value{
		"filename": String("magnet:?xt=secret"),
		"ids":      Ints([]int{1}),
		"labels":   Strings([]string{"private"}),
	})
	text := v.Redacted().String()
	if strings.Contains(text, "secret") || strings.Contains(text, "private") {
		t.Fatalf("redacted = %s, still contains string values", text)
	}
	for _, want := range []string{`"filename"`, `"ids":[1]`, `"labels"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("redacted = %s, want it to contain %s", text, want)
		}
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	v := Object(map[string]Value{"a": Int(1)})
	fields, _ := v.ObjectValue()
	fields["a"] = Int(2)
	got, _ := v.Field("a")
	if n, _ := got.IntValue(); n != 1 {
		t.Fatalf("mutating ObjectValue result leaked into value: a = %d", n)
	}
}

func TestParse_RejectsTrailingData(t *testing.T) {
	if _, err := Parse([]byte(`{} {}`)); err == nil {
		t.Fatal("Parse returned nil error, want trailing data error")
	}
}
