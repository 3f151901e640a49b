package sigil

import (
	"reflect"
	"sort"

	"github.com/Neumenon/sigil/shape"
)

// Marshal encodes v as a compact JSON document.
func Marshal(v any) ([]byte, error) {
	return marshalPooled(v, "")
}

// MarshalIndent encodes v with one element per line, nested elements
// indented by indent.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return marshalPooled(v, indent)
}

func marshalPooled(v any, indent string) ([]byte, error) {
	buf := getBuffer()
	out, err := appendValue(buf[:0], v, indent)
	if err != nil {
		putBuffer(buf)
		return nil, err
	}
	result := make([]byte, len(out))
	copy(result, out)
	putBuffer(out)
	return result, nil
}

// Append encodes v onto dst and returns the extended buffer. The
// buffer is caller-owned; nothing is pooled.
func Append(dst []byte, v any) ([]byte, error) {
	return appendValue(dst, v, "")
}

func appendValue(dst []byte, v any, indent string) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, &Error{Kind: KindTypeMismatch, Detail: "cannot encode untyped nil"}
	}
	sh, err := shape.Of(rv.Type())
	if err != nil {
		return nil, err
	}
	e := &encoder{buf: dst, indent: indent}
	if eerr := e.encodeValue(sh, rv, nil); eerr != nil {
		return nil, eerr
	}
	return e.buf, nil
}

type encoder struct {
	buf    []byte
	indent string
	depth  int
}

func (e *encoder) pretty() bool { return e.indent != "" }

func (e *encoder) newline() {
	e.buf = append(e.buf, '\n')
	for i := 0; i < e.depth; i++ {
		e.buf = append(e.buf, e.indent...)
	}
}

// ============================================================
// Value dispatch
// ============================================================

func (e *encoder) encodeValue(s *shape.Shape, v reflect.Value, path Path) *Error {
	switch s.Kind {
	case shape.Scalar:
		return e.encodeScalar(s, v, path)
	case shape.Option:
		if v.IsNil() {
			e.buf = append(e.buf, "null"...)
			return nil
		}
		return e.encodeValue(s.Elem, v.Elem(), path)
	case shape.List:
		return e.encodeList(s, v, path)
	case shape.Tuple:
		return e.encodeTuple(s, v, path)
	case shape.Map:
		return e.encodeMap(s, v, path)
	case shape.Struct:
		return e.encodeStruct(s, v, path, "", "")
	case shape.Enum:
		return e.encodeEnum(s, v, path)
	case shape.Transparent:
		return e.encodeValue(s.Elem, v.Field(0), path)
	default:
		return &Error{Kind: KindTypeMismatch, Path: path,
			Detail: "cannot encode " + s.Kind.String() + " shape"}
	}
}

func (e *encoder) encodeScalar(s *shape.Shape, v reflect.Value, path Path) *Error {
	switch s.Scalar {
	case shape.ScalarBool:
		if v.Bool() {
			e.buf = append(e.buf, "true"...)
		} else {
			e.buf = append(e.buf, "false"...)
		}
	case shape.ScalarInt:
		e.buf = appendInt(e.buf, v.Int())
	case shape.ScalarUint:
		e.buf = appendUint(e.buf, v.Uint())
	case shape.ScalarFloat:
		f := v.Float()
		if !floatRepresentable(f) {
			return &Error{Kind: KindTypeMismatch, Path: path,
				Detail: "NaN and infinity have no JSON form"}
		}
		e.buf = appendFloat(e.buf, f, v.Type().Bits())
	case shape.ScalarString:
		out, err := appendQuoted(e.buf, v.String())
		if err != nil {
			return err.withPath(path)
		}
		e.buf = out
	case shape.ScalarText:
		text, herr := s.Text.ToText(v)
		if herr != nil {
			return &Error{Kind: KindTypeMismatch, Path: path,
				Detail: s.Name + ": " + herr.Error()}
		}
		out, err := appendQuoted(e.buf, text)
		if err != nil {
			return err.withPath(path)
		}
		e.buf = out
	case shape.ScalarNumber:
		raw, herr := s.Number.ToNumber(v)
		if herr != nil {
			return &Error{Kind: KindTypeMismatch, Path: path,
				Detail: s.Name + ": " + herr.Error()}
		}
		e.buf = append(e.buf, raw...)
	}
	return nil
}

// ============================================================
// Containers
// ============================================================

func (e *encoder) encodeList(s *shape.Shape, v reflect.Value, path Path) *Error {
	n := v.Len()
	if n == 0 {
		e.buf = append(e.buf, "[]"...)
		return nil
	}
	e.buf = append(e.buf, '[')
	e.depth++
	for i := 0; i < n; i++ {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		if e.pretty() {
			e.newline()
		}
		if err := e.encodeValue(s.Elem, v.Index(i), path.index(i)); err != nil {
			return err
		}
	}
	e.depth--
	if e.pretty() {
		e.newline()
	}
	e.buf = append(e.buf, ']')
	return nil
}

func (e *encoder) encodeTuple(s *shape.Shape, v reflect.Value, path Path) *Error {
	e.buf = append(e.buf, '[')
	e.depth++
	for i := range s.Elems {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		if e.pretty() {
			e.newline()
		}
		if err := e.encodeValue(s.Elems[i], tupleElem(v, i), path.index(i)); err != nil {
			return err
		}
	}
	e.depth--
	if e.pretty() {
		e.newline()
	}
	e.buf = append(e.buf, ']')
	return nil
}

// tupleElem fetches slot i from a tuple struct or Go array.
func tupleElem(v reflect.Value, i int) reflect.Value {
	if v.Kind() == reflect.Array {
		return v.Index(i)
	}
	seen := 0
	t := v.Type()
	for j := 0; j < t.NumField(); j++ {
		if !t.Field(j).IsExported() {
			continue
		}
		if seen == i {
			return v.Field(j)
		}
		seen++
	}
	return reflect.Value{}
}

// encodeMap emits entries sorted by stringified key, so output is
// deterministic regardless of Go map iteration order.
func (e *encoder) encodeMap(s *shape.Shape, v reflect.Value, path Path) *Error {
	if v.Len() == 0 {
		e.buf = append(e.buf, "{}"...)
		return nil
	}
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		ks, err := stringifyKey(s.Key, iter.Key(), path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: ks, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	e.buf = append(e.buf, '{')
	e.depth++
	for i, ent := range entries {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		if e.pretty() {
			e.newline()
		}
		out, qerr := appendQuoted(e.buf, ent.key)
		if qerr != nil {
			return qerr.withPath(path)
		}
		e.buf = out
		e.buf = append(e.buf, ':')
		if e.pretty() {
			e.buf = append(e.buf, ' ')
		}
		if err := e.encodeValue(s.Elem, ent.val, path.key(ent.key)); err != nil {
			return err
		}
	}
	e.depth--
	if e.pretty() {
		e.newline()
	}
	e.buf = append(e.buf, '}')
	return nil
}

// stringifyKey renders a map key as object-key text. Numeric keys get
// their decimal form (quoted by the caller); keys with no unique
// textual form are rejected.
func stringifyKey(ks *shape.Shape, k reflect.Value, path Path) (string, *Error) {
	if ks.Kind == shape.Transparent {
		return stringifyKey(ks.Elem, k.Field(0), path)
	}
	switch ks.Scalar {
	case shape.ScalarString:
		return k.String(), nil
	case shape.ScalarInt:
		return string(appendInt(nil, k.Int())), nil
	case shape.ScalarUint:
		return string(appendUint(nil, k.Uint())), nil
	case shape.ScalarText:
		text, herr := ks.Text.ToText(k)
		if herr != nil {
			return "", &Error{Kind: KindTypeMismatch, Path: path,
				Detail: ks.Name + ": " + herr.Error()}
		}
		return text, nil
	default:
		return "", &Error{Kind: KindUnrepresentableKey, Path: path,
			Detail: "key type " + ks.Name}
	}
}

// ============================================================
// Structs
// ============================================================

// encodeStruct emits the object form of a struct. extraKey/extraValue,
// when set, inject a leading member, used by internally tagged enums to
// plant the discriminator. Flattened fields contribute their members
// inline.
func (e *encoder) encodeStruct(s *shape.Shape, v reflect.Value, path Path, extraKey, extraValue string) *Error {
	e.buf = append(e.buf, '{')
	e.depth++
	wrote := 0

	writeKey := func(key string) *Error {
		if wrote > 0 {
			e.buf = append(e.buf, ',')
		}
		if e.pretty() {
			e.newline()
		}
		out, qerr := appendQuoted(e.buf, key)
		if qerr != nil {
			return qerr.withPath(path)
		}
		e.buf = out
		e.buf = append(e.buf, ':')
		if e.pretty() {
			e.buf = append(e.buf, ' ')
		}
		return nil
	}

	if extraKey != "" {
		if err := writeKey(extraKey); err != nil {
			return err
		}
		out, qerr := appendQuoted(e.buf, extraValue)
		if qerr != nil {
			return qerr.withPath(path)
		}
		e.buf = out
		wrote++
	}

	var err *Error
	wrote, err = e.encodeFields(s, v, path, wrote, writeKey)
	if err != nil {
		return err
	}

	e.depth--
	if wrote > 0 && e.pretty() {
		e.newline()
	}
	e.buf = append(e.buf, '}')
	return nil
}

func (e *encoder) encodeFields(s *shape.Shape, v reflect.Value, path Path, wrote int, writeKey func(string) *Error) (int, *Error) {
	for i := range s.Fields {
		f := &s.Fields[i]
		fv := v.Field(f.Index)

		if f.Flatten {
			var err *Error
			switch f.Shape.Kind {
			case shape.Struct:
				wrote, err = e.encodeFields(f.Shape, fv, path, wrote, writeKey)
			case shape.Map:
				wrote, err = e.encodeFlatMap(f.Shape, fv, path, wrote, writeKey)
			}
			if err != nil {
				return wrote, err
			}
			continue
		}

		if f.OmitZero && isDefault(f, fv) {
			continue
		}
		if err := writeKey(f.Name); err != nil {
			return wrote, err
		}
		if err := e.encodeValue(f.Shape, fv, path.key(f.Name)); err != nil {
			return wrote, err
		}
		wrote++
	}
	return wrote, nil
}

func (e *encoder) encodeFlatMap(s *shape.Shape, v reflect.Value, path Path, wrote int, writeKey func(string) *Error) (int, *Error) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		ks, err := stringifyKey(s.Key, iter.Key(), path)
		if err != nil {
			return wrote, err
		}
		entries = append(entries, entry{key: ks, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	for _, ent := range entries {
		if err := writeKey(ent.key); err != nil {
			return wrote, err
		}
		if err := e.encodeValue(s.Elem, ent.val, path.key(ent.key)); err != nil {
			return wrote, err
		}
		wrote++
	}
	return wrote, nil
}

// isDefault reports whether a field value should be skipped under
// OmitZero: equal to the declared default when one exists, otherwise
// the zero value.
func isDefault(f *shape.Field, v reflect.Value) bool {
	if f.Default != nil {
		return reflect.DeepEqual(v.Interface(), f.Default().Interface())
	}
	return v.IsZero()
}

// ============================================================
// Enums
// ============================================================

func (e *encoder) encodeEnum(s *shape.Shape, v reflect.Value, path Path) *Error {
	if v.IsNil() {
		return &Error{Kind: KindTypeMismatch, Path: path,
			Detail: "cannot encode nil " + s.Name}
	}
	concrete := v.Elem()
	if concrete.Kind() == reflect.Pointer {
		if concrete.IsNil() {
			return &Error{Kind: KindTypeMismatch, Path: path,
				Detail: "cannot encode nil " + s.Name}
		}
		concrete = concrete.Elem()
	}
	variant := s.VariantByType(concrete.Type())
	if variant == nil {
		return &Error{Kind: KindUnknownVariant, Path: path,
			Detail: concrete.Type().String() + " is not a registered variant of " + s.Name}
	}

	if s.TagField != "" {
		if variant.Shape.Kind != shape.Struct {
			return &Error{Kind: KindTypeMismatch, Path: path,
				Detail: "tagged variant " + variant.Tag + " must be a struct"}
		}
		return e.encodeStruct(variant.Shape, concrete, path, s.TagField, variant.Tag)
	}

	if variant.IsUnit() {
		out, qerr := appendQuoted(e.buf, variant.Tag)
		if qerr != nil {
			return qerr.withPath(path)
		}
		e.buf = out
		return nil
	}

	e.buf = append(e.buf, '{')
	e.depth++
	if e.pretty() {
		e.newline()
	}
	out, qerr := appendQuoted(e.buf, variant.Tag)
	if qerr != nil {
		return qerr.withPath(path)
	}
	e.buf = out
	e.buf = append(e.buf, ':')
	if e.pretty() {
		e.buf = append(e.buf, ' ')
	}
	if err := e.encodeValue(variant.Shape, concrete, path.key(variant.Tag)); err != nil {
		return err
	}
	e.depth--
	if e.pretty() {
		e.newline()
	}
	e.buf = append(e.buf, '}')
	return nil
}
