package sigil

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Scalar Encoding
// ============================================================

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"true", true, "true"},
		{"false", false, "false"},
		{"int", 42, "42"},
		{"negative", -7, "-7"},
		{"min int64", int64(math.MinInt64), "-9223372036854775808"},
		{"max uint64", uint64(math.MaxUint64), "18446744073709551615"},
		{"zero float", 0.0, "0"},
		{"tenth", 0.1, "0.1"},
		{"pi-ish", 3.14, "3.14"},
		{"neg exp", -0.0025, "-0.0025"},
		{"string", "hi", `"hi"`},
		{"empty string", "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.value)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(out) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, out)
			}
		})
	}
}

func TestMarshal_FloatShortestRoundTrip(t *testing.T) {
	values := []float64{0.1, 0.3, 0.30000000000000004, 1e21, 5e-324, math.MaxFloat64}
	for _, v := range values {
		out, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%g) failed: %v", v, err)
		}
		var back float64
		if err := Unmarshal(out, &back); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", out, err)
		}
		if back != v {
			t.Errorf("%g did not round-trip: emitted %s, got %g", v, out, back)
		}
	}
}

func TestMarshal_NonFiniteRejected(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Marshal(v); err == nil {
			t.Errorf("expected error for %g", v)
		}
	}
}

func TestMarshal_StringEscaping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
		{"a\nb", `"a\nb"`},
		{"a\tb", `"a\tb"`},
		{"\b\f\r", `"\b\f\r"`},
		{"\x01", `"\u0001"`},
		{"\x1f", `"\u001f"`},
		{"é世😀", `"é世😀"`},
		{"plain ascii stays as is!", `"plain ascii stays as is!"`},
		{strings.Repeat("x", 100), `"` + strings.Repeat("x", 100) + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			out, err := Marshal(tt.input)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(out) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, out)
			}
		})
	}
}

func TestMarshal_InvalidUTF8Rejected(t *testing.T) {
	_, err := Marshal("a\xffb")
	se, ok := err.(*Error)
	if !ok || se.Kind != KindInvalidUTF8 {
		t.Fatalf("expected invalid UTF-8 error, got %v", err)
	}
	// Encoding has no input document; the error carries no span and the
	// message must not claim a byte position in one.
	if se.Span != (Span{}) {
		t.Errorf("expected no span, got %v", se.Span)
	}
	if strings.Contains(se.Error(), "at byte") {
		t.Errorf("message must not claim a byte offset: %s", se.Error())
	}
}

// ============================================================
// Composite Encoding
// ============================================================

func TestMarshal_Struct(t *testing.T) {
	p := person{Name: "Ada", Age: 36}
	out, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// bio is omitempty and zero, so it is skipped.
	if string(out) != `{"name":"Ada","age":36}` {
		t.Errorf("unexpected: %s", out)
	}

	p.Bio = "b"
	out, _ = Marshal(p)
	if string(out) != `{"name":"Ada","age":36,"bio":"b"}` {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_MapsSorted(t *testing.T) {
	out, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"a":1,"b":2,"c":3}` {
		t.Errorf("expected sorted keys, got %s", out)
	}
}

func TestMarshal_NumericMapKeysQuoted(t *testing.T) {
	out, err := Marshal(map[int]int{1: 10, 2: 20})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"1":10,"2":20}` {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_FloatMapKeyRejected(t *testing.T) {
	_, err := Marshal(map[float64]int{1.5: 1})
	se, ok := err.(*Error)
	if !ok || se.Kind != KindUnrepresentableKey {
		t.Fatalf("expected unrepresentable key, got %v", err)
	}
}

func TestMarshal_Option(t *testing.T) {
	h := optHolder{}
	out, err := Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"val":null}` {
		t.Errorf("unexpected: %s", out)
	}

	five := 5
	h.Val = &five
	out, _ = Marshal(h)
	if string(out) != `{"val":5}` {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_ByteSliceAsNumbers(t *testing.T) {
	out, err := Marshal([]byte{1, 2, 255})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "[1,2,255]" {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_TupleStruct(t *testing.T) {
	out, err := Marshal(pair{X: 1.5, Y: -2})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "[1.5,-2]" {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_TransparentWrapper(t *testing.T) {
	out, err := Marshal(userID{Raw: "u-1"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `"u-1"` {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_TextHooks(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	out, err := Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `"2026-08-30T12:00:00Z"` {
		t.Errorf("unexpected: %s", out)
	}

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	out, _ = Marshal(id)
	if string(out) != `"6ba7b810-9dad-11d1-80b4-00c04fd430c8"` {
		t.Errorf("unexpected: %s", out)
	}
}

// ============================================================
// Enum Encoding
// ============================================================

func TestMarshal_ExternalEnum(t *testing.T) {
	var r Rule = allowAll{}
	out, err := Marshal(&r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// Pointer to interface encodes through the Option layer.
	if string(out) != `"AllowAll"` {
		t.Errorf("unexpected: %s", out)
	}

	r = limitRate{PerSecond: 10}
	out, _ = Marshal(&r)
	if string(out) != `{"LimitRate":{"per_second":10,"strict":false}}` {
		t.Errorf("unexpected: %s", out)
	}
}

func TestMarshal_InternalTaggedEnum(t *testing.T) {
	var e Event = created{ID: 3, Name: "thing"}
	out, err := Marshal(&e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// The discriminator is the first member.
	if string(out) != `{"type":"created","id":3,"name":"thing"}` {
		t.Errorf("unexpected: %s", out)
	}
}

// ============================================================
// Pretty printing, Append
// ============================================================

func TestMarshalIndent(t *testing.T) {
	out, err := MarshalIndent(person{Name: "a", Age: 1}, "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}
	expected := "{\n  \"name\": \"a\",\n  \"age\": 1\n}"
	if string(out) != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, out)
	}
}

func TestMarshalIndent_Nested(t *testing.T) {
	out, err := MarshalIndent([]int{1, 2}, "\t")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}
	if string(out) != "[\n\t1,\n\t2\n]" {
		t.Errorf("unexpected:\n%s", out)
	}
}

func TestAppend(t *testing.T) {
	buf := []byte("prefix:")
	out, err := Append(buf, 42)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if string(out) != "prefix:42" {
		t.Errorf("unexpected: %s", out)
	}
}

// ============================================================
// Flatten Encoding
// ============================================================

func TestMarshal_Flatten(t *testing.T) {
	b := box{
		Label: "a",
		Dim:   dimensions{Width: 3, Height: 4},
		Extra: map[string]int{"depth": 5},
	}
	out, err := Marshal(b)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"label":"a","width":3,"height":4,"depth":5}` {
		t.Errorf("unexpected: %s", out)
	}
}
