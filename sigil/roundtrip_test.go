package sigil

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Neumenon/sigil/shape"
)

// ============================================================
// Round-Trip Tests
// ============================================================

type document struct {
	ID       uuid.UUID         `json:"id"`
	Title    string            `json:"title"`
	Created  time.Time         `json:"created"`
	Author   *person           `json:"author"`
	Sections []section         `json:"sections"`
	Labels   map[string]string `json:"labels,omitempty"`
	Rule     Rule              `json:"rule"`
	Position pair              `json:"position"`
}

type section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Draft   bool   `json:"draft,omitempty"`
}

func TestRoundTrip_Document(t *testing.T) {
	orig := document{
		ID:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Title:   "Notes for august: naïve draft 📝",
		Created: time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
		Author:  &person{Name: "Ada", Age: 36},
		Sections: []section{
			{Heading: "intro", Level: 1},
			{Heading: "body", Level: 2, Draft: true},
		},
		Labels:   map[string]string{"state": "open", "kind": "note"},
		Rule:     limitRate{PerSecond: 100, Burst: 10},
		Position: pair{X: 0.1, Y: -3},
	}

	data, err := Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back document
	if err := Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Errorf("round trip changed the value:\n  orig: %+v\n  back: %+v", orig, back)
	}

	// Deterministic output: encoding again yields identical bytes.
	data2, err := Marshal(back)
	if err != nil {
		t.Fatalf("second Marshal failed: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("non-deterministic output:\n  %s\n  %s", data, data2)
	}
}

func TestRoundTrip_PrettyDecodesBack(t *testing.T) {
	orig := nested{ID: 1, Inner: person{Name: "x", Age: 2}, Tags: []string{"a"}}
	data, err := MarshalIndent(orig, "    ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}
	var back nested
	if err := Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Errorf("pretty round trip changed the value: %+v", back)
	}
}

func TestRoundTrip_InternalTaggedEnum(t *testing.T) {
	var orig Event = created{ID: 7, Name: "n"}
	data, err := Marshal(&orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Event
	if err := Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Errorf("round trip changed the value: %+v", back)
	}
}

func TestRoundTrip_NumericMapKeys(t *testing.T) {
	orig := map[int8]string{-1: "a", 0: "b", 7: "c"}
	data, err := Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back map[int8]string
	if err := Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Errorf("round trip changed the value: %v", back)
	}
}

// ============================================================
// Raw-number hooks
// ============================================================

// cents stores an exact decimal amount as its literal text.
type cents struct {
	Literal string
}

func init() {
	shape.RegisterNumberScalar(cents{},
		func(dst reflect.Value, raw string) error {
			dst.Set(reflect.ValueOf(cents{Literal: raw}))
			return nil
		},
		func(src reflect.Value) (string, error) {
			return src.Interface().(cents).Literal, nil
		},
	)
}

func TestRoundTrip_RawNumberHooks(t *testing.T) {
	// The literal survives exactly, including precision float64 would
	// destroy.
	in := `0.10000000000000000000000001`
	var c cents
	if err := Unmarshal([]byte(in), &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if c.Literal != in {
		t.Errorf("expected literal %s, got %s", in, c.Literal)
	}
	out, err := Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != in {
		t.Errorf("expected %s, got %s", in, out)
	}
}

func TestRoundTrip_QuotedNumberIntoHooks(t *testing.T) {
	var c cents
	if err := Unmarshal([]byte(`"12.50"`), &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if c.Literal != "12.50" {
		t.Errorf("unexpected literal: %s", c.Literal)
	}
}
