package shape

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Test fixtures
// ============================================================

type account struct {
	Name    string `json:"name"`
	Balance int    `json:"balance"`
	Note    string `json:"note,omitempty"`
	Skip    string `json:"-"`
	hidden  byte
}

type accountID struct {
	Raw string `sigil:"unwrap"`
}

type labeled struct {
	Label string         `json:"label"`
	Meta  map[string]int `sigil:"flatten"`
}

type badFlatten struct {
	N int `sigil:"flatten"`
}

type node struct {
	Value int   `json:"value"`
	Next  *node `json:"next"`
}

// hexID exercises the encoding.TextMarshaler detection path.
type hexID uint32

func (h hexID) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%08x", uint32(h))), nil
}

func (h *hexID) UnmarshalText(text []byte) error {
	_, err := fmt.Sscanf(string(text), "%08x", (*uint32)(h))
	return err
}

type shade interface{ isShade() }

type light struct{}

type dark struct {
	Level int `json:"level"`
}

func (light) isShade() {}
func (dark) isShade()  {}

type unbound interface{ isUnbound() }

// ============================================================
// Scalars
// ============================================================

func TestOf_Scalars(t *testing.T) {
	tests := []struct {
		typ    reflect.Type
		scalar ScalarKind
	}{
		{reflect.TypeOf(true), ScalarBool},
		{reflect.TypeOf(int8(0)), ScalarInt},
		{reflect.TypeOf(int64(0)), ScalarInt},
		{reflect.TypeOf(uint16(0)), ScalarUint},
		{reflect.TypeOf(float64(0)), ScalarFloat},
		{reflect.TypeOf(""), ScalarString},
	}

	for _, tt := range tests {
		s, err := Of(tt.typ)
		if err != nil {
			t.Fatalf("Of(%s) failed: %v", tt.typ, err)
		}
		if s.Kind != Scalar || s.Scalar != tt.scalar {
			t.Errorf("%s: expected scalar %s, got %s/%s", tt.typ, tt.scalar, s.Kind, s.Scalar)
		}
	}
}

func TestOf_BuiltinTextScalars(t *testing.T) {
	for _, typ := range []reflect.Type{reflect.TypeOf(time.Time{}), reflect.TypeOf(uuid.UUID{})} {
		s, err := Of(typ)
		if err != nil {
			t.Fatalf("Of(%s) failed: %v", typ, err)
		}
		if s.Kind != Scalar || s.Scalar != ScalarText || s.Text == nil {
			t.Errorf("%s: expected a registered text scalar, got %s/%s", typ, s.Kind, s.Scalar)
		}
	}
}

func TestOf_TextMarshalerDetection(t *testing.T) {
	s, err := Of(reflect.TypeOf(hexID(0)))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Kind != Scalar || s.Scalar != ScalarText {
		t.Fatalf("expected text scalar, got %s/%s", s.Kind, s.Scalar)
	}

	out, err := s.Text.ToText(reflect.ValueOf(hexID(0xdeadbeef)))
	if err != nil {
		t.Fatalf("ToText failed: %v", err)
	}
	if out != "deadbeef" {
		t.Errorf("unexpected text: %s", out)
	}

	var h hexID
	if err := s.Text.FromText(reflect.ValueOf(&h).Elem(), "000000ff"); err != nil {
		t.Fatalf("FromText failed: %v", err)
	}
	if h != 0xff {
		t.Errorf("expected 0xff, got %#x", uint32(h))
	}
}

// ============================================================
// Containers
// ============================================================

func TestOf_Containers(t *testing.T) {
	s, err := Of(reflect.TypeOf((*int)(nil)))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Kind != Option || s.Elem.Scalar != ScalarInt {
		t.Errorf("pointer: expected option of int, got %s", s.Kind)
	}

	s, _ = Of(reflect.TypeOf([]string(nil)))
	if s.Kind != List || s.Elem.Scalar != ScalarString {
		t.Errorf("slice: expected list of string, got %s", s.Kind)
	}

	s, _ = Of(reflect.TypeOf([3]float64{}))
	if s.Kind != Tuple || len(s.Elems) != 3 || s.Elems[0].Scalar != ScalarFloat {
		t.Errorf("array: expected 3-tuple of float, got %s with %d elems", s.Kind, len(s.Elems))
	}

	s, _ = Of(reflect.TypeOf(map[int16]bool(nil)))
	if s.Kind != Map || s.Key.Scalar != ScalarInt || s.Elem.Scalar != ScalarBool {
		t.Errorf("map: unexpected descriptor %s", s.Kind)
	}
}

// ============================================================
// Structs
// ============================================================

func TestOf_Struct(t *testing.T) {
	s, err := Of(reflect.TypeOf(account{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Kind != Struct {
		t.Fatalf("expected struct, got %s", s.Kind)
	}
	// "-" and unexported fields do not appear.
	if len(s.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(s.Fields))
	}

	name := s.FieldByName("name")
	if name == nil || name.GoName != "Name" || name.OmitZero || name.Optional {
		t.Errorf("unexpected name field: %+v", name)
	}
	note := s.FieldByName("note")
	if note == nil || !note.OmitZero || !note.Optional {
		t.Errorf("omitempty field must be optional: %+v", note)
	}
	if s.FieldByName("Skip") != nil || s.FieldByName("hidden") != nil {
		t.Error("skipped fields must not be reachable by name")
	}
}

func TestOf_TransparentWrapper(t *testing.T) {
	s, err := Of(reflect.TypeOf(accountID{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Kind != Transparent || s.Elem.Scalar != ScalarString {
		t.Errorf("expected transparent string wrapper, got %s", s.Kind)
	}
}

func TestOf_Flatten(t *testing.T) {
	s, err := Of(reflect.TypeOf(labeled{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	meta := s.FieldByName("Meta")
	if meta == nil || !meta.Flatten || meta.Shape.Kind != Map {
		t.Errorf("expected flattened map field, got %+v", meta)
	}

	if _, err := Of(reflect.TypeOf(badFlatten{})); err == nil {
		t.Error("flattening a scalar field should fail")
	}
}

func TestOf_RecursiveType(t *testing.T) {
	s, err := Of(reflect.TypeOf(node{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	next := s.FieldByName("next")
	if next == nil || next.Shape.Kind != Option {
		t.Fatalf("expected option field, got %+v", next)
	}
	// The cycle resolves to the same descriptor, not an infinite chain.
	if next.Shape.Elem != s {
		t.Error("recursive type must reuse its own descriptor")
	}
	if !next.Optional {
		t.Error("option fields tolerate absence")
	}
}

func TestOf_Caching(t *testing.T) {
	a, err := Of(reflect.TypeOf(account{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	b, err := Of(reflect.TypeOf(account{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if a != b {
		t.Error("repeated Of calls must return the cached descriptor")
	}
}

// ============================================================
// Tuples
// ============================================================

type coord struct {
	Lat float64
	Lng float64
}

func TestRegisterTuple(t *testing.T) {
	RegisterTuple(coord{})
	s, err := Of(reflect.TypeOf(coord{}))
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Kind != Tuple || len(s.Elems) != 2 || s.Elems[1].Scalar != ScalarFloat {
		t.Errorf("expected 2-tuple of float, got %s with %d elems", s.Kind, len(s.Elems))
	}
}

// ============================================================
// Enums
// ============================================================

func TestOf_Enum(t *testing.T) {
	RegisterEnum((*shade)(nil), EnumOpts{},
		V("Light", light{}),
		V("Dark", dark{}),
	)

	s, err := Of(reflect.TypeOf((*shade)(nil)).Elem())
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Kind != Enum || len(s.Variants) != 2 {
		t.Fatalf("expected enum with 2 variants, got %s", s.Kind)
	}

	v := s.VariantByTag("Light")
	if v == nil || !v.IsUnit() {
		t.Errorf("Light should be a unit variant: %+v", v)
	}
	v = s.VariantByTag("Dark")
	if v == nil || v.IsUnit() || v.Shape.FieldByName("level") == nil {
		t.Errorf("Dark should carry a payload: %+v", v)
	}
	if s.VariantByType(reflect.TypeOf(dark{})) != v {
		t.Error("VariantByType must find the same variant")
	}
	if s.VariantByTag("Gray") != nil {
		t.Error("unknown tag must return nil")
	}
}

func TestOf_UnregisteredInterface(t *testing.T) {
	_, err := Of(reflect.TypeOf((*unbound)(nil)).Elem())
	if err == nil {
		t.Fatal("expected an error for an interface with no variants")
	}
}

func TestRegisterEnum_BadDefault(t *testing.T) {
	type orphan interface{ isShade() }
	RegisterEnum((*orphan)(nil), EnumOpts{DefaultVariant: "nope"},
		V("Light", light{}),
	)
	if _, err := Of(reflect.TypeOf((*orphan)(nil)).Elem()); err == nil {
		t.Fatal("expected an error for an unregistered default variant")
	}
}

func TestRegisterEnum_RequiresInterfacePointer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	RegisterEnum(light{}, EnumOpts{}, V("Light", light{}))
}

// ============================================================
// Unsupported types
// ============================================================

func TestOf_Unsupported(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeOf(make(chan int)),
		reflect.TypeOf(func() {}),
		reflect.TypeOf(complex(1, 2)),
	} {
		if _, err := Of(typ); err == nil {
			t.Errorf("expected error for %s", typ)
		}
	}
}
