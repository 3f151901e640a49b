// Package shape provides the runtime type descriptors that drive the sigil
// codec. A Shape describes the layout of a Go type (scalar kind, struct
// fields, enum variants, container element types) without any per-type
// generated code. Shapes are built once (see Of) and are immutable
// afterwards, so any number of concurrent encoders and decoders may share
// them without locking.
package shape

import (
	"reflect"
)

// Kind identifies the structural category of a Shape.
type Kind uint8

const (
	Invalid Kind = iota
	Scalar
	Struct
	Tuple
	List
	Map
	Option
	Enum
	Transparent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Struct:
		return "struct"
	case Tuple:
		return "tuple"
	case List:
		return "list"
	case Map:
		return "map"
	case Option:
		return "option"
	case Enum:
		return "enum"
	case Transparent:
		return "transparent"
	default:
		return "invalid"
	}
}

// ScalarKind identifies the native representation of a Scalar shape.
type ScalarKind uint8

const (
	ScalarInvalid ScalarKind = iota
	ScalarBool
	ScalarInt   // int, int8..int64
	ScalarUint  // uint, uint8..uint64
	ScalarFloat // float32, float64
	ScalarString
	ScalarText   // custom type with textual conversion hooks
	ScalarNumber // custom type with numeric conversion hooks
)

// String returns the scalar kind name.
func (k ScalarKind) String() string {
	switch k {
	case ScalarBool:
		return "bool"
	case ScalarInt:
		return "int"
	case ScalarUint:
		return "uint"
	case ScalarFloat:
		return "float"
	case ScalarString:
		return "string"
	case ScalarText:
		return "text"
	case ScalarNumber:
		return "number"
	default:
		return "invalid"
	}
}

// TextHooks convert a custom scalar to and from its textual JSON form.
// FromText must fully initialize dst; ToText must not mutate src.
type TextHooks struct {
	FromText func(dst reflect.Value, text string) error
	ToText   func(src reflect.Value) (string, error)
}

// NumberHooks convert a custom scalar to and from a raw JSON number
// literal. The raw form is the exact byte text of the literal, so
// arbitrary-precision types lose nothing.
type NumberHooks struct {
	FromNumber func(dst reflect.Value, raw string) error
	ToNumber   func(src reflect.Value) (string, error)
}

// Field describes one struct field as seen on the wire.
type Field struct {
	Name     string // wire name (after rename)
	GoName   string // Go field name, for diagnostics
	Index    int    // index into the Go struct
	Shape    *Shape
	OmitZero bool                 // skip on encode when the value equals its default
	Flatten  bool                 // inline this field's keys into the parent object
	Optional bool                 // missing on decode leaves the zero value
	Default  func() reflect.Value // default provider, may be nil
}

// Variant describes one member of an Enum shape.
type Variant struct {
	Tag   string // discriminator value on the wire
	Type  reflect.Type
	Shape *Shape
}

// Shape is a runtime descriptor of a Go type's structure. Exactly the
// fields relevant to Kind are populated.
type Shape struct {
	Kind Kind
	Type reflect.Type
	Name string // type identifier used in diagnostics

	// Scalar
	Scalar ScalarKind
	Text   *TextHooks
	Number *NumberHooks

	// Struct
	Fields []Field
	byName map[string]int

	// Tuple: ordered element shapes
	Elems []*Shape

	// List element, Map value, Option inner, Transparent inner
	Elem *Shape

	// Map key
	Key *Shape

	// Enum
	Variants       []Variant
	TagField       string // non-empty selects the internally tagged form
	DefaultVariant string // fallback tag when no discriminator is present
	byTag          map[string]int
	byType         map[reflect.Type]int
}

// FieldByName returns the field with the given wire name, or nil.
func (s *Shape) FieldByName(name string) *Field {
	if i, ok := s.byName[name]; ok {
		return &s.Fields[i]
	}
	return nil
}

// VariantByTag returns the variant with the given tag, or nil.
func (s *Shape) VariantByTag(tag string) *Variant {
	if i, ok := s.byTag[tag]; ok {
		return &s.Variants[i]
	}
	return nil
}

// VariantByType returns the variant whose payload is the given Go type,
// or nil.
func (s *Shape) VariantByType(t reflect.Type) *Variant {
	if i, ok := s.byType[t]; ok {
		return &s.Variants[i]
	}
	return nil
}

// IsUnit reports whether a variant carries no payload fields.
func (v *Variant) IsUnit() bool {
	return v.Shape.Kind == Struct && len(v.Shape.Fields) == 0
}
