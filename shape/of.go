package shape

import (
	"encoding"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ============================================================
// Registries
// ============================================================

var registry struct {
	sync.Mutex
	cache   map[reflect.Type]*Shape
	scalars map[reflect.Type]scalarReg
	enums   map[reflect.Type]enumReg
	tuples  map[reflect.Type]bool
}

type scalarReg struct {
	text   *TextHooks
	number *NumberHooks
}

type enumReg struct {
	opts     EnumOpts
	variants []Variant
}

func init() {
	registry.cache = make(map[reflect.Type]*Shape)
	registry.scalars = make(map[reflect.Type]scalarReg)
	registry.enums = make(map[reflect.Type]enumReg)
	registry.tuples = make(map[reflect.Type]bool)

	// Built-in textual scalars.
	RegisterTextScalar(time.Time{},
		func(dst reflect.Value, text string) error {
			t, err := time.Parse(time.RFC3339Nano, text)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		},
		func(src reflect.Value) (string, error) {
			return src.Interface().(time.Time).Format(time.RFC3339Nano), nil
		},
	)
	RegisterTextScalar(uuid.UUID{},
		func(dst reflect.Value, text string) error {
			u, err := uuid.Parse(text)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(u))
			return nil
		},
		func(src reflect.Value) (string, error) {
			return src.Interface().(uuid.UUID).String(), nil
		},
	)
}

// RegisterTextScalar installs textual conversion hooks for a custom scalar
// type. The prototype value only supplies the type. Registration must
// happen before the first Of call involving the type.
func RegisterTextScalar(proto any, from func(reflect.Value, string) error, to func(reflect.Value) (string, error)) {
	t := reflect.TypeOf(proto)
	registry.Lock()
	defer registry.Unlock()
	reg := registry.scalars[t]
	reg.text = &TextHooks{FromText: from, ToText: to}
	registry.scalars[t] = reg
	delete(registry.cache, t)
}

// RegisterNumberScalar installs numeric conversion hooks for a custom
// scalar type. The hooks see the raw JSON number literal, so
// arbitrary-precision types round-trip exactly.
func RegisterNumberScalar(proto any, from func(reflect.Value, string) error, to func(reflect.Value) (string, error)) {
	t := reflect.TypeOf(proto)
	registry.Lock()
	defer registry.Unlock()
	reg := registry.scalars[t]
	reg.number = &NumberHooks{FromNumber: from, ToNumber: to}
	registry.scalars[t] = reg
	delete(registry.cache, t)
}

// EnumOpts configures how an enum's discriminator appears on the wire.
type EnumOpts struct {
	// TagField selects the internally tagged form: the variant tag is a
	// member of the payload object, e.g. {"type":"SYMBOL","name":"x"}.
	// Empty selects the externally tagged form: "Unit" or {"Variant": payload}.
	TagField string

	// DefaultVariant is decoded when the input carries no recognizable
	// discriminator. An explicit tag always wins over the default.
	DefaultVariant string
}

// V pairs a tag with a prototype payload value, for RegisterEnum.
func V(tag string, proto any) Variant {
	return Variant{Tag: tag, Type: reflect.TypeOf(proto)}
}

// RegisterEnum binds a Go interface type to a closed set of variants.
// ifacePtr is a nil pointer to the interface, e.g. (*Rule)(nil).
// Variant order is the declaration order reported in diagnostics.
func RegisterEnum(ifacePtr any, opts EnumOpts, variants ...Variant) {
	t := reflect.TypeOf(ifacePtr)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		panic("shape: RegisterEnum requires a nil interface pointer like (*Rule)(nil)")
	}
	registry.Lock()
	defer registry.Unlock()
	registry.enums[t.Elem()] = enumReg{opts: opts, variants: variants}
	delete(registry.cache, t.Elem())
}

// RegisterTuple declares that a struct type serializes as a JSON array of
// its fields in declaration order, rather than as an object.
func RegisterTuple(proto any) {
	t := reflect.TypeOf(proto)
	if t.Kind() != reflect.Struct {
		panic("shape: RegisterTuple requires a struct prototype")
	}
	registry.Lock()
	defer registry.Unlock()
	registry.tuples[t] = true
	delete(registry.cache, t)
}

// ============================================================
// Builder
// ============================================================

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Of returns the Shape describing t, building and caching it on first
// use. Recursive types are supported as long as the cycle passes through
// a pointer, matching how such types are declared in Go.
func Of(t reflect.Type) (*Shape, error) {
	registry.Lock()
	defer registry.Unlock()
	if s, ok := registry.cache[t]; ok {
		return s, nil
	}
	b := builder{building: make(map[reflect.Type]*Shape)}
	s, err := b.build(t)
	if err != nil {
		return nil, err
	}
	for bt, bs := range b.building {
		registry.cache[bt] = bs
	}
	return s, nil
}

// MustOf is Of for statically known types; it panics on descriptor errors.
func MustOf(t reflect.Type) *Shape {
	s, err := Of(t)
	if err != nil {
		panic(err)
	}
	return s
}

type builder struct {
	// building holds partially constructed shapes so that recursive
	// types resolve to the same descriptor instead of looping.
	building map[reflect.Type]*Shape
}

func (b *builder) build(t reflect.Type) (*Shape, error) {
	if s, ok := registry.cache[t]; ok {
		return s, nil
	}
	if s, ok := b.building[t]; ok {
		return s, nil
	}

	s := &Shape{Type: t, Name: typeName(t)}
	b.building[t] = s

	if reg, ok := registry.scalars[t]; ok {
		s.Kind = Scalar
		if reg.text != nil {
			s.Scalar = ScalarText
			s.Text = reg.text
		}
		if reg.number != nil {
			s.Scalar = ScalarNumber
			s.Number = reg.number
		}
		return s, nil
	}

	// encoding.TextMarshaler/TextUnmarshaler pairs act as textual
	// scalars without explicit registration.
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface &&
		t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		s.Kind = Scalar
		s.Scalar = ScalarText
		s.Text = &TextHooks{
			FromText: func(dst reflect.Value, text string) error {
				return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text))
			},
			ToText: func(src reflect.Value) (string, error) {
				out, err := src.Interface().(encoding.TextMarshaler).MarshalText()
				return string(out), err
			},
		}
		return s, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		s.Kind, s.Scalar = Scalar, ScalarBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s.Kind, s.Scalar = Scalar, ScalarInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s.Kind, s.Scalar = Scalar, ScalarUint
	case reflect.Float32, reflect.Float64:
		s.Kind, s.Scalar = Scalar, ScalarFloat
	case reflect.String:
		s.Kind, s.Scalar = Scalar, ScalarString

	case reflect.Pointer:
		inner, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		s.Kind = Option
		s.Elem = inner

	case reflect.Slice:
		elem, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		s.Kind = List
		s.Elem = elem

	case reflect.Array:
		elem, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		s.Kind = Tuple
		s.Elems = make([]*Shape, t.Len())
		for i := range s.Elems {
			s.Elems[i] = elem
		}

	case reflect.Map:
		// Key representability is checked per operation: keys with no
		// unique textual form are an UnrepresentableKey diagnostic at
		// encode or decode time, not a descriptor error.
		key, err := b.build(t.Key())
		if err != nil {
			return nil, err
		}
		val, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		s.Kind = Map
		s.Key = key
		s.Elem = val

	case reflect.Struct:
		if err := b.buildStruct(s, t); err != nil {
			return nil, err
		}

	case reflect.Interface:
		reg, ok := registry.enums[t]
		if !ok {
			return nil, errors.Newf("shape: interface type %s has no registered enum variants", t)
		}
		if err := b.buildEnum(s, t, reg); err != nil {
			return nil, err
		}

	default:
		return nil, errors.Newf("shape: unsupported type %s (kind %s)", t, t.Kind())
	}

	return s, nil
}

func (b *builder) buildStruct(s *Shape, t reflect.Type) error {
	if registry.tuples[t] {
		s.Kind = Tuple
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fs, err := b.build(f.Type)
			if err != nil {
				return err
			}
			s.Elems = append(s.Elems, fs)
		}
		return nil
	}

	// A single-field struct whose field is tagged sigil:"unwrap" is a
	// transparent wrapper: it contributes no JSON structure of its own.
	if t.NumField() == 1 {
		if opt, _ := sigilTag(t.Field(0)); opt == "unwrap" {
			inner, err := b.build(t.Field(0).Type)
			if err != nil {
				return err
			}
			s.Kind = Transparent
			s.Elem = inner
			return nil
		}
	}

	s.Kind = Struct
	s.byName = make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		// Embedded fields of unexported struct types stay: their exported
		// fields promote, same as encoding/json.
		if !f.IsExported() && !(f.Anonymous && f.Type.Kind() == reflect.Struct) {
			continue
		}
		name, omit := jsonTag(f)
		if name == "-" {
			continue
		}
		fs, err := b.build(f.Type)
		if err != nil {
			return errors.Wrapf(err, "field %s.%s", t.Name(), f.Name)
		}
		opt, optional := sigilTag(f)
		fld := Field{
			Name:     name,
			GoName:   f.Name,
			Index:    i,
			Shape:    fs,
			OmitZero: omit,
			// A field skipped at its zero value on encode must accept
			// absence on decode, or round-trips would fail.
			Optional: optional || omit,
		}
		// Anonymous embedded structs flatten their keys into the
		// enclosing object, matching encoding/json.
		if opt == "flatten" || (f.Anonymous && fs.Kind == Struct && name == f.Name) {
			if fs.Kind != Struct && fs.Kind != Map {
				return errors.Newf("shape: field %s.%s: flatten requires a struct or map, got %s", t.Name(), f.Name, fs.Kind)
			}
			fld.Flatten = true
		}
		// Option fields are always satisfiable: a missing key decodes
		// to nil the same way an explicit null does.
		if fs.Kind == Option {
			fld.Optional = true
		}
		s.byName[fld.Name] = len(s.Fields)
		s.Fields = append(s.Fields, fld)
	}
	return nil
}

func (b *builder) buildEnum(s *Shape, t reflect.Type, reg enumReg) error {
	s.Kind = Enum
	s.TagField = reg.opts.TagField
	s.DefaultVariant = reg.opts.DefaultVariant
	s.byTag = make(map[string]int)
	s.byType = make(map[reflect.Type]int)
	for _, v := range reg.variants {
		if !v.Type.Implements(t) && !reflect.PointerTo(v.Type).Implements(t) {
			return errors.Newf("shape: enum %s: variant %q type %s does not implement the interface", t, v.Tag, v.Type)
		}
		vs, err := b.build(v.Type)
		if err != nil {
			return errors.Wrapf(err, "enum %s variant %q", t, v.Tag)
		}
		v.Shape = vs
		s.byTag[v.Tag] = len(s.Variants)
		s.byType[v.Type] = len(s.Variants)
		s.Variants = append(s.Variants, v)
	}
	if s.DefaultVariant != "" {
		if _, ok := s.byTag[s.DefaultVariant]; !ok {
			return errors.Newf("shape: enum %s: default variant %q is not registered", t, s.DefaultVariant)
		}
	}
	if len(s.Variants) == 0 {
		return errors.Newf("shape: enum %s has no variants", t)
	}
	return nil
}

func jsonTag(f reflect.StructField) (name string, omitempty bool) {
	name = f.Name
	tag := f.Tag.Get("json")
	if tag == "" {
		return name, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

// sigilTag returns the codec-specific tag option and whether the field
// tolerates absence ("default" marks the zero value as an acceptable
// default).
func sigilTag(f reflect.StructField) (opt string, optional bool) {
	for _, p := range strings.Split(f.Tag.Get("sigil"), ",") {
		switch p {
		case "default":
			optional = true
		case "flatten", "unwrap":
			opt = p
		}
	}
	return opt, optional
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
