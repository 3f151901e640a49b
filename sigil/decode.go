package sigil

import (
	"reflect"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Neumenon/sigil/shape"
)

// Options configures decoding behavior.
type Options struct {
	// DisallowUnknownFields turns unrecognized object keys into errors
	// instead of skipping them.
	DisallowUnknownFields bool

	// Logger receives trace output for each decoded document. Nil means
	// no logging.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Unmarshal decodes a single JSON document into v, which must be a
// non-nil pointer. Input after the document (other than whitespace) is
// an error.
func Unmarshal(data []byte, v any) error {
	return UnmarshalWith(data, v, Options{})
}

// UnmarshalWith is Unmarshal with explicit options.
func UnmarshalWith(data []byte, v any, opts Options) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Error{Kind: KindTypeMismatch, Detail: "destination must be a non-nil pointer"}
	}
	sh, err := shape.Of(rv.Type().Elem())
	if err != nil {
		return err
	}
	return UnmarshalShape(sh, data, rv.Elem(), opts)
}

// UnmarshalShape decodes a document into dst under an explicit shape,
// bypassing the reflect-based shape lookup. dst must be addressable and
// match the shape's Go type.
func UnmarshalShape(sh *shape.Shape, data []byte, dst reflect.Value, opts Options) error {
	d := &decodeState{
		src:  data,
		tok:  NewTokenizer(data),
		opts: opts,
		log:  opts.logger(),
	}
	if err := d.decodeValue(sh, dst, nil); err != nil {
		return err
	}
	if err := d.requireEOF(); err != nil {
		return err
	}
	return nil
}

// ============================================================
// Multi-document decoding
// ============================================================

// Decoder decodes a sequence of JSON documents from one buffer, as in
// JSON Lines input. Each Decode resumes at the byte after the previous
// document; nothing is rescanned.
type Decoder struct {
	d *decodeState
}

// NewDecoder returns a decoder over data.
func NewDecoder(data []byte, opts Options) *Decoder {
	return &Decoder{d: &decodeState{
		src:  data,
		tok:  NewTokenizer(data),
		opts: opts,
		log:  opts.logger(),
	}}
}

// More reports whether another document follows.
func (dec *Decoder) More() bool {
	t, err := dec.d.peek()
	return err == nil && t.Kind != TokenEOF
}

// Decode reads the next document into v. It returns false with a nil
// error at the end of input.
func (dec *Decoder) Decode(v any) (bool, error) {
	t, perr := dec.d.peek()
	if perr != nil {
		return false, perr
	}
	if t.Kind == TokenEOF {
		return false, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, &Error{Kind: KindTypeMismatch, Detail: "destination must be a non-nil pointer"}
	}
	sh, err := shape.Of(rv.Type().Elem())
	if err != nil {
		return false, err
	}
	if derr := dec.d.decodeValue(sh, rv.Elem(), nil); derr != nil {
		return false, derr
	}
	return true, nil
}

// InputOffset returns the byte offset the next Decode will resume at.
func (dec *Decoder) InputOffset() int {
	if dec.d.hasPeek && dec.d.peekErr == nil {
		return dec.d.peeked.Span.Start
	}
	return dec.d.tok.Offset()
}

// ============================================================
// Decode state
// ============================================================

type decodeState struct {
	src     []byte
	tok     *Tokenizer
	peeked  Token
	peekErr *Error
	hasPeek bool
	opts    Options
	log     *zap.Logger
}

// peek returns the next token without consuming it. The decoder keeps
// at most this one token of lookahead. Errors are cached in the slot
// too: the tokenizer cursor stops inside the malformed literal, so a
// rescan after a failed peek would produce a bogus second diagnostic.
func (d *decodeState) peek() (Token, *Error) {
	if !d.hasPeek {
		d.peeked, d.peekErr = d.tok.Next()
		d.hasPeek = true
	}
	return d.peeked, d.peekErr
}

func (d *decodeState) next() (Token, *Error) {
	if d.hasPeek {
		d.hasPeek = false
		return d.peeked, d.peekErr
	}
	return d.tok.Next()
}

// expect consumes the next token and checks its kind.
func (d *decodeState) expect(kind TokenKind, path Path) (Token, *Error) {
	t, err := d.next()
	if err != nil {
		return Token{}, err.withPath(path)
	}
	if t.Kind != kind {
		if t.Kind == TokenEOF {
			return Token{}, errAt(d.src, KindUnexpectedEnd, t.Span,
				"expected "+kind.String()).withPath(path)
		}
		return Token{}, errAt(d.src, KindUnexpectedToken, t.Span,
			"expected "+kind.String()+", got "+t.Kind.String()).withPath(path)
	}
	return t, nil
}

// requireEOF checks that only whitespace remains.
func (d *decodeState) requireEOF() *Error {
	t, err := d.next()
	if err != nil {
		return err
	}
	if t.Kind != TokenEOF {
		return errAt(d.src, KindTrailingData, t.Span,
			"input continues after document")
	}
	return nil
}

// ============================================================
// Value dispatch
// ============================================================

func (d *decodeState) decodeValue(s *shape.Shape, dst reflect.Value, path Path) *Error {
	// Tokenizer errors surface here, before dispatch: the cursor has
	// already passed the malformed literal, and a later rescan would
	// start mid-literal. Structural tokens can never begin a value;
	// catching them here keeps the diagnostic structural instead of
	// shape-specific.
	t, err := d.peek()
	if err != nil {
		return err.withPath(path)
	}
	switch t.Kind {
	case TokenComma, TokenColon, TokenObjectEnd, TokenArrayEnd:
		return errAt(d.src, KindUnexpectedToken, t.Span, "expected value").withPath(path)
	}
	switch s.Kind {
	case shape.Scalar:
		return d.decodeScalar(s, dst, path)
	case shape.Option:
		return d.decodeOption(s, dst, path)
	case shape.List:
		return d.decodeList(s, dst, path)
	case shape.Tuple:
		return d.decodeTuple(s, dst, path)
	case shape.Map:
		return d.decodeMap(s, dst, path)
	case shape.Struct:
		return d.decodeStruct(s, dst, path, "")
	case shape.Enum:
		return d.decodeEnum(s, dst, path)
	case shape.Transparent:
		return d.decodeValue(s.Elem, dst.Field(0), path)
	default:
		return &Error{Kind: KindTypeMismatch, Path: path,
			Detail: "cannot decode into " + s.Kind.String() + " shape"}
	}
}

// ============================================================
// Scalars
// ============================================================

func (d *decodeState) decodeScalar(s *shape.Shape, dst reflect.Value, path Path) *Error {
	t, err := d.next()
	if err != nil {
		return err.withPath(path)
	}
	switch t.Kind {
	case TokenEOF:
		return errAt(d.src, KindUnexpectedEnd, t.Span, "expected value").withPath(path)
	case TokenNull:
		return errAt(d.src, KindTypeMismatch, t.Span,
			"null is only valid for optional values").withPath(path)
	}

	switch s.Scalar {
	case shape.ScalarBool:
		switch t.Kind {
		case TokenTrue:
			dst.SetBool(true)
		case TokenFalse:
			dst.SetBool(false)
		default:
			return d.mismatch(t, "bool", path)
		}
		return nil

	case shape.ScalarInt:
		nt, err := d.numberToken(t, path, s.Name)
		if err != nil {
			return err
		}
		if nt.IsFloat {
			return errAt(d.src, KindTypeMismatch, nt.Span,
				"float literal for integer target "+s.Name).withPath(path)
		}
		v, perr := parseInt(d.src, nt, dst.Type().Bits())
		if perr != nil {
			return perr.withPath(path)
		}
		dst.SetInt(v)
		return nil

	case shape.ScalarUint:
		nt, err := d.numberToken(t, path, s.Name)
		if err != nil {
			return err
		}
		if nt.IsFloat {
			return errAt(d.src, KindTypeMismatch, nt.Span,
				"float literal for integer target "+s.Name).withPath(path)
		}
		v, perr := parseUint(d.src, nt, dst.Type().Bits())
		if perr != nil {
			return perr.withPath(path)
		}
		dst.SetUint(v)
		return nil

	case shape.ScalarFloat:
		nt, err := d.numberToken(t, path, s.Name)
		if err != nil {
			return err
		}
		v, perr := parseFloat(d.src, nt, dst.Type().Bits())
		if perr != nil {
			return perr.withPath(path)
		}
		dst.SetFloat(v)
		return nil

	case shape.ScalarString:
		switch t.Kind {
		case TokenString:
			dst.SetString(t.Text())
		case TokenNumber:
			// Number literal into a string target keeps the exact
			// literal text.
			dst.SetString(t.Text())
		default:
			return d.mismatch(t, "string", path)
		}
		return nil

	case shape.ScalarText:
		if t.Kind != TokenString {
			return d.mismatch(t, s.Name, path)
		}
		if herr := s.Text.FromText(dst, t.Text()); herr != nil {
			return errAt(d.src, KindTypeMismatch, t.Span,
				s.Name+": "+herr.Error()).withPath(path)
		}
		return nil

	case shape.ScalarNumber:
		nt, err := d.numberToken(t, path, s.Name)
		if err != nil {
			return err
		}
		if herr := s.Number.FromNumber(dst, nt.Text()); herr != nil {
			return errAt(d.src, KindTypeMismatch, nt.Span,
				s.Name+": "+herr.Error()).withPath(path)
		}
		return nil

	default:
		return &Error{Kind: KindTypeMismatch, Path: path, Detail: "invalid scalar shape"}
	}
}

// numberToken accepts either a number token or a string token whose
// content parses as a number literal, returning the effective number
// token. The string coercion re-tokenizes the content so the usual
// syntax rules apply inside the quotes.
func (d *decodeState) numberToken(t Token, path Path, target string) (Token, *Error) {
	switch t.Kind {
	case TokenNumber:
		return t, nil
	case TokenString:
		// newTokenizerAt, not NewTokenizer: the content of a quoted
		// number gets no BOM allowance.
		sub := newTokenizerAt(t.Bytes(), 0)
		nt, err := sub.Next()
		if err != nil || nt.Kind != TokenNumber || sub.Offset() != len(t.Bytes()) {
			return Token{}, errAt(d.src, KindTypeMismatch, t.Span,
				"string is not a number for target "+target).withPath(path)
		}
		// Rebase the span onto the enclosing string token.
		nt.Span = t.Span
		return nt, nil
	default:
		return Token{}, d.mismatch(t, target, path)
	}
}

func (d *decodeState) mismatch(t Token, want string, path Path) *Error {
	return errAt(d.src, KindTypeMismatch, t.Span,
		"expected "+want+", got "+t.Kind.String()).withPath(path)
}

// ============================================================
// Option
// ============================================================

func (d *decodeState) decodeOption(s *shape.Shape, dst reflect.Value, path Path) *Error {
	t, err := d.peek()
	if err != nil {
		return err.withPath(path)
	}
	if t.Kind == TokenNull {
		d.hasPeek = false
		dst.SetZero()
		return nil
	}
	inner := reflect.New(dst.Type().Elem())
	if derr := d.decodeValue(s.Elem, inner.Elem(), path); derr != nil {
		return derr
	}
	dst.Set(inner)
	return nil
}

// ============================================================
// Lists and tuples
// ============================================================

// decodeList builds a fresh slice and stores it only on success, so a
// failed decode leaves the destination untouched.
func (d *decodeState) decodeList(s *shape.Shape, dst reflect.Value, path Path) *Error {
	if _, err := d.expect(TokenArrayStart, path); err != nil {
		return err
	}
	out := reflect.MakeSlice(dst.Type(), 0, 4)
	i := 0
	for {
		t, err := d.peek()
		if err != nil {
			return err.withPath(path)
		}
		switch {
		case t.Kind == TokenArrayEnd && i == 0:
			d.hasPeek = false
			dst.Set(out)
			return nil
		case i > 0:
			switch t.Kind {
			case TokenArrayEnd:
				d.hasPeek = false
				dst.Set(out)
				return nil
			case TokenComma:
				d.hasPeek = false
				nt, err := d.peek()
				if err != nil {
					return err.withPath(path)
				}
				if nt.Kind == TokenArrayEnd {
					return errAt(d.src, KindTrailingComma, t.Span, "").withPath(path)
				}
			default:
				return errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , or ] in array").withPath(path)
			}
		}
		elem := reflect.New(out.Type().Elem()).Elem()
		if derr := d.decodeValue(s.Elem, elem, path.index(i)); derr != nil {
			return derr
		}
		out = reflect.Append(out, elem)
		i++
	}
}

// decodeTuple decodes a fixed-arity array into a tuple struct or Go
// array. Arity mismatch is a structural error at the bracket that
// revealed it.
func (d *decodeState) decodeTuple(s *shape.Shape, dst reflect.Value, path Path) *Error {
	if _, err := d.expect(TokenArrayStart, path); err != nil {
		return err
	}
	p := shape.NewPartial(s, dst)
	for i := range s.Elems {
		if i > 0 {
			t, err := d.next()
			if err != nil {
				p.Teardown()
				return err.withPath(path)
			}
			if t.Kind != TokenComma {
				p.Teardown()
				if t.Kind == TokenArrayEnd {
					return errAt(d.src, KindUnexpectedToken, t.Span,
						"array too short: expected "+itoa(len(s.Elems))+" elements").withPath(path)
				}
				return errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , in array").withPath(path)
			}
		}
		if derr := d.decodeValue(s.Elems[i], p.Field(i), path.index(i)); derr != nil {
			p.Teardown()
			return derr
		}
		p.Mark(i)
	}
	t, err := d.next()
	if err != nil {
		p.Teardown()
		return err.withPath(path)
	}
	if t.Kind != TokenArrayEnd {
		p.Teardown()
		if t.Kind == TokenComma {
			return errAt(d.src, KindUnexpectedToken, t.Span,
				"array too long: expected "+itoa(len(s.Elems))+" elements").withPath(path)
		}
		return errAt(d.src, KindUnexpectedToken, t.Span,
			"expected ] after tuple").withPath(path)
	}
	return nil
}

// ============================================================
// Maps
// ============================================================

// decodeMap builds a fresh map and stores it only on success. A
// repeated key overwrites the earlier entry.
func (d *decodeState) decodeMap(s *shape.Shape, dst reflect.Value, path Path) *Error {
	if _, err := d.expect(TokenObjectStart, path); err != nil {
		return err
	}
	out := reflect.MakeMap(dst.Type())
	first := true
	for {
		t, err := d.next()
		if err != nil {
			return err.withPath(path)
		}
		switch {
		case t.Kind == TokenObjectEnd && first:
			dst.Set(out)
			return nil
		case !first:
			switch t.Kind {
			case TokenObjectEnd:
				dst.Set(out)
				return nil
			case TokenComma:
				comma := t
				var nerr *Error
				t, nerr = d.next()
				if nerr != nil {
					return nerr.withPath(path)
				}
				if t.Kind == TokenObjectEnd {
					return errAt(d.src, KindTrailingComma, comma.Span, "").withPath(path)
				}
			default:
				return errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , or } in object").withPath(path)
			}
		}
		first = false
		if t.Kind != TokenString {
			if t.Kind == TokenEOF {
				return errAt(d.src, KindUnexpectedEnd, t.Span, "expected object key").withPath(path)
			}
			return errAt(d.src, KindUnexpectedToken, t.Span,
				"expected object key").withPath(path)
		}
		key := reflect.New(dst.Type().Key()).Elem()
		if kerr := d.decodeMapKey(s.Key, t, key, path); kerr != nil {
			return kerr
		}
		if _, cerr := d.expect(TokenColon, path); cerr != nil {
			return cerr
		}
		val := reflect.New(dst.Type().Elem()).Elem()
		if verr := d.decodeValue(s.Elem, val, path.key(t.Text())); verr != nil {
			return verr
		}
		out.SetMapIndex(key, val)
	}
}

// decodeMapKey converts a key token to the map's key type. Numeric key
// types parse their quoted decimal form.
func (d *decodeState) decodeMapKey(ks *shape.Shape, t Token, dst reflect.Value, path Path) *Error {
	if ks.Kind == shape.Transparent {
		return d.decodeMapKey(ks.Elem, t, dst.Field(0), path)
	}
	switch ks.Scalar {
	case shape.ScalarString:
		dst.SetString(t.Text())
		return nil
	case shape.ScalarInt:
		nt, err := d.numberToken(t, path, ks.Name)
		if err != nil {
			return err
		}
		v, perr := parseInt(d.src, nt, dst.Type().Bits())
		if perr != nil {
			return perr.withPath(path)
		}
		dst.SetInt(v)
		return nil
	case shape.ScalarUint:
		nt, err := d.numberToken(t, path, ks.Name)
		if err != nil {
			return err
		}
		v, perr := parseUint(d.src, nt, dst.Type().Bits())
		if perr != nil {
			return perr.withPath(path)
		}
		dst.SetUint(v)
		return nil
	case shape.ScalarText:
		if herr := ks.Text.FromText(dst, t.Text()); herr != nil {
			return errAt(d.src, KindTypeMismatch, t.Span,
				ks.Name+": "+herr.Error()).withPath(path)
		}
		return nil
	default:
		return errAt(d.src, KindUnrepresentableKey, t.Span,
			"key type "+ks.Name).withPath(path)
	}
}

// ============================================================
// Structs
// ============================================================

// flatTarget routes an object key that did not match a direct field.
type flatTarget struct {
	outer int // index into s.Fields
	inner int // index into the flattened struct's fields, -1 for map
}

// decodeStruct fills dst field by field, tracking initialization so a
// mid-object failure tears down exactly what was built. ignoreKey names
// a key to skip silently, used when an enclosing enum has already
// consumed the discriminator.
func (d *decodeState) decodeStruct(s *shape.Shape, dst reflect.Value, path Path, ignoreKey string) *Error {
	open, err := d.expect(TokenObjectStart, path)
	if err != nil {
		return err
	}

	p := shape.NewPartial(s, dst)
	var (
		flat     map[string]flatTarget
		flatMaps []int
		subParts map[int]*shape.Partial
	)
	for i := range s.Fields {
		f := &s.Fields[i]
		if !f.Flatten {
			continue
		}
		switch f.Shape.Kind {
		case shape.Struct:
			if flat == nil {
				flat = make(map[string]flatTarget)
			}
			for j := range f.Shape.Fields {
				flat[f.Shape.Fields[j].Name] = flatTarget{outer: i, inner: j}
			}
		case shape.Map:
			flatMaps = append(flatMaps, i)
		}
	}

	fail := func(e *Error) *Error {
		for _, sp := range subParts {
			sp.Teardown()
		}
		p.Teardown()
		return e
	}

	first := true
	for {
		t, terr := d.next()
		if terr != nil {
			return fail(terr.withPath(path))
		}
		switch {
		case t.Kind == TokenObjectEnd && first:
			return d.finishStruct(s, p, subParts, dst, open, path, fail)
		case !first:
			switch t.Kind {
			case TokenObjectEnd:
				return d.finishStruct(s, p, subParts, dst, open, path, fail)
			case TokenComma:
				comma := t
				var nerr *Error
				t, nerr = d.next()
				if nerr != nil {
					return fail(nerr.withPath(path))
				}
				if t.Kind == TokenObjectEnd {
					return fail(errAt(d.src, KindTrailingComma, comma.Span, "").withPath(path))
				}
			default:
				return fail(errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , or } in object").withPath(path))
			}
		}
		first = false
		if t.Kind != TokenString {
			if t.Kind == TokenEOF {
				return fail(errAt(d.src, KindUnexpectedEnd, t.Span, "expected object key").withPath(path))
			}
			return fail(errAt(d.src, KindUnexpectedToken, t.Span,
				"expected object key").withPath(path))
		}
		key := t.Text()
		if _, cerr := d.expect(TokenColon, path); cerr != nil {
			return fail(cerr)
		}

		if key == ignoreKey {
			if serr := d.skipValue(path.key(key)); serr != nil {
				return fail(serr)
			}
			continue
		}

		if f := s.FieldByName(key); f != nil && !f.Flatten {
			i := indexOfField(s, f)
			if derr := d.decodeValue(f.Shape, p.Field(i), path.key(key)); derr != nil {
				return fail(derr)
			}
			p.Mark(i)
			continue
		}

		if ft, ok := flat[key]; ok {
			outer := &s.Fields[ft.outer]
			if subParts == nil {
				subParts = make(map[int]*shape.Partial)
			}
			sp := subParts[ft.outer]
			if sp == nil {
				sp = shape.NewPartial(outer.Shape, dst.Field(outer.Index))
				subParts[ft.outer] = sp
			}
			inner := &outer.Shape.Fields[ft.inner]
			if derr := d.decodeValue(inner.Shape, sp.Field(ft.inner), path.key(key)); derr != nil {
				return fail(derr)
			}
			sp.Mark(ft.inner)
			p.Mark(ft.outer)
			continue
		}

		if len(flatMaps) > 0 {
			i := flatMaps[0]
			f := &s.Fields[i]
			m := dst.Field(f.Index)
			if m.IsNil() {
				m.Set(reflect.MakeMap(m.Type()))
			}
			mk := reflect.New(m.Type().Key()).Elem()
			if kerr := d.decodeMapKey(f.Shape.Key, t, mk, path); kerr != nil {
				return fail(kerr)
			}
			mv := reflect.New(m.Type().Elem()).Elem()
			if derr := d.decodeValue(f.Shape.Elem, mv, path.key(key)); derr != nil {
				return fail(derr)
			}
			m.SetMapIndex(mk, mv)
			p.Mark(i)
			continue
		}

		if d.opts.DisallowUnknownFields {
			known := lo.Map(s.Fields, func(f shape.Field, _ int) string { return f.Name })
			return fail(errAt(d.src, KindUnknownField, t.Span,
				"\""+key+"\" is not one of "+strings.Join(known, ", ")).withPath(path))
		}
		if serr := d.skipValue(path.key(key)); serr != nil {
			return fail(serr)
		}
	}
}

// finishStruct runs end-of-object bookkeeping: defaults, then required
// field checks on the outer struct and any flattened sub-structs.
func (d *decodeState) finishStruct(s *shape.Shape, p *shape.Partial, subParts map[int]*shape.Partial, dst reflect.Value, open Token, path Path, fail func(*Error) *Error) *Error {
	p.FillDefaults()
	for i, sp := range subParts {
		sp.FillDefaults()
		if missing := sp.Missing(); len(missing) > 0 {
			return fail(errAt(d.src, KindMissingField, open.Span,
				strings.Join(missing, ", ")+" in "+s.Fields[i].Shape.Name).withPath(path))
		}
	}
	// A flattened struct that contributed no keys is still complete
	// when none of its own fields are required; otherwise its inner
	// fields are the ones reported missing.
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Flatten && !p.IsSet(i) {
			if f.Shape.Kind == shape.Map {
				p.Mark(i)
				continue
			}
			sub := shape.NewPartial(f.Shape, dst.Field(f.Index))
			sub.FillDefaults()
			if missing := sub.Missing(); len(missing) > 0 {
				sub.Teardown()
				return fail(errAt(d.src, KindMissingField, open.Span,
					strings.Join(missing, ", ")+" in "+f.Shape.Name).withPath(path))
			}
			p.Mark(i)
		}
	}
	if missing := p.Missing(); len(missing) > 0 {
		return fail(errAt(d.src, KindMissingField, open.Span,
			strings.Join(missing, ", ")+" in "+s.Name).withPath(path))
	}
	return nil
}

func indexOfField(s *shape.Shape, f *shape.Field) int {
	for i := range s.Fields {
		if &s.Fields[i] == f {
			return i
		}
	}
	return -1
}

// ============================================================
// Enums
// ============================================================

// decodeEnum resolves a variant and decodes its payload into the
// interface destination.
//
// Externally tagged form: a bare string names a unit variant; an object
// with a single key names the variant and carries its payload.
//
// Internally tagged form (TagField set): the payload object itself
// carries the discriminator. The object is skimmed once to find the
// tag, then replayed from its opening brace into the chosen variant,
// with the tag key ignored on the second pass. An explicit tag always
// wins over DefaultVariant; the default applies only when no tag key is
// present at all.
func (d *decodeState) decodeEnum(s *shape.Shape, dst reflect.Value, path Path) *Error {
	t, err := d.peek()
	if err != nil {
		return err.withPath(path)
	}

	if s.TagField != "" {
		return d.decodeTaggedEnum(s, dst, t, path)
	}

	switch t.Kind {
	case TokenString:
		d.hasPeek = false
		v := s.VariantByTag(t.Text())
		if v == nil {
			return d.unknownVariant(s, t, path)
		}
		if !v.IsUnit() {
			return errAt(d.src, KindTypeMismatch, t.Span,
				"variant "+v.Tag+" carries a payload").withPath(path)
		}
		storeVariant(dst, reflect.Zero(v.Type))
		return nil

	case TokenObjectStart:
		d.hasPeek = false
		kt, kerr := d.expect(TokenString, path)
		if kerr != nil {
			return kerr
		}
		v := s.VariantByTag(kt.Text())
		if v == nil {
			if s.DefaultVariant != "" {
				// No recognizable discriminator: replay the whole
				// object into the default variant.
				return d.replayVariant(s.VariantByTag(s.DefaultVariant), dst, t.Span.Start, "", path)
			}
			return d.unknownVariant(s, kt, path)
		}
		if _, cerr := d.expect(TokenColon, path); cerr != nil {
			return cerr
		}
		payload := reflect.New(v.Type).Elem()
		if derr := d.decodeValue(v.Shape, payload, path.key(v.Tag)); derr != nil {
			return derr
		}
		if _, eerr := d.expect(TokenObjectEnd, path); eerr != nil {
			return eerr
		}
		storeVariant(dst, payload)
		return nil

	default:
		if s.DefaultVariant != "" {
			return d.replayVariant(s.VariantByTag(s.DefaultVariant), dst, t.Span.Start, "", path)
		}
		return d.mismatch(t, "enum "+s.Name, path)
	}
}

// decodeTaggedEnum handles the internally tagged form. The first pass
// consumes the object looking only at the tag field; the second decodes
// the payload from the recorded start offset.
func (d *decodeState) decodeTaggedEnum(s *shape.Shape, dst reflect.Value, t Token, path Path) *Error {
	if t.Kind != TokenObjectStart {
		return d.mismatch(t, "object for enum "+s.Name, path)
	}
	objStart := t.Span.Start

	tag, found, serr := d.skimForTag(s.TagField, path)
	if serr != nil {
		return serr
	}

	var v *shape.Variant
	switch {
	case found:
		v = s.VariantByTag(tag)
		if v == nil {
			return errAt(d.src, KindUnknownVariant, t.Span,
				"\""+tag+"\" is not one of "+strings.Join(variantTags(s), ", ")).withPath(path)
		}
	case s.DefaultVariant != "":
		v = s.VariantByTag(s.DefaultVariant)
	default:
		return errAt(d.src, KindUnknownVariant, t.Span,
			"missing tag field \""+s.TagField+"\"").withPath(path)
	}

	d.log.Debug("resolved enum variant",
		zap.String("enum", s.Name), zap.String("variant", v.Tag))
	return d.replayVariant(v, dst, objStart, s.TagField, path)
}

// skimForTag consumes the object under the cursor, returning the value
// of the named string member if present. Values are skipped, not
// decoded.
func (d *decodeState) skimForTag(tagField string, path Path) (string, bool, *Error) {
	if _, err := d.expect(TokenObjectStart, path); err != nil {
		return "", false, err
	}
	var tag string
	found := false
	first := true
	for {
		t, err := d.next()
		if err != nil {
			return "", false, err.withPath(path)
		}
		if t.Kind == TokenObjectEnd && first {
			return tag, found, nil
		}
		if !first {
			switch t.Kind {
			case TokenObjectEnd:
				return tag, found, nil
			case TokenComma:
				comma := t
				var nerr *Error
				t, nerr = d.next()
				if nerr != nil {
					return "", false, nerr.withPath(path)
				}
				if t.Kind == TokenObjectEnd {
					return "", false, errAt(d.src, KindTrailingComma, comma.Span, "").withPath(path)
				}
			default:
				return "", false, errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , or } in object").withPath(path)
			}
		}
		first = false
		if t.Kind != TokenString {
			return "", false, errAt(d.src, KindUnexpectedToken, t.Span,
				"expected object key").withPath(path)
		}
		key := t.Text()
		if _, cerr := d.expect(TokenColon, path); cerr != nil {
			return "", false, cerr
		}
		if key == tagField {
			vt, verr := d.next()
			if verr != nil {
				return "", false, verr.withPath(path)
			}
			if vt.Kind != TokenString {
				return "", false, errAt(d.src, KindTypeMismatch, vt.Span,
					"tag field must be a string").withPath(path)
			}
			tag, found = vt.Text(), true
			continue
		}
		if serr := d.skipValue(path.key(key)); serr != nil {
			return "", false, serr
		}
	}
}

// replayVariant decodes a variant payload from a recorded byte offset
// with a fresh sub-tokenizer, then stores it into the interface.
func (d *decodeState) replayVariant(v *shape.Variant, dst reflect.Value, off int, ignoreKey string, path Path) *Error {
	sub := &decodeState{
		src:  d.src,
		tok:  newTokenizerAt(d.src, off),
		opts: d.opts,
		log:  d.log,
	}
	payload := reflect.New(v.Type).Elem()
	var derr *Error
	if v.Shape.Kind == shape.Struct {
		derr = sub.decodeStruct(v.Shape, payload, path, ignoreKey)
	} else {
		derr = sub.decodeValue(v.Shape, payload, path)
	}
	if derr != nil {
		return derr
	}
	// In the tagged form the skim already consumed the object; the
	// replay tokenizer is discarded, so the main cursor is unchanged.
	// In the untagged default path the main cursor must catch up.
	if d.tok.Offset() < sub.tok.Offset() {
		d.tok = newTokenizerAt(d.src, sub.tok.Offset())
		d.hasPeek = false
	}
	storeVariant(dst, payload)
	return nil
}

// storeVariant places a concrete payload into the interface
// destination, taking its address when only the pointer type satisfies
// the interface.
func storeVariant(dst reflect.Value, payload reflect.Value) {
	if payload.Type().Implements(dst.Type()) {
		dst.Set(payload)
		return
	}
	pv := reflect.New(payload.Type())
	pv.Elem().Set(payload)
	dst.Set(pv)
}

func (d *decodeState) unknownVariant(s *shape.Shape, t Token, path Path) *Error {
	return errAt(d.src, KindUnknownVariant, t.Span,
		"\""+t.Text()+"\" is not one of "+strings.Join(variantTags(s), ", ")).withPath(path)
}

func variantTags(s *shape.Shape) []string {
	return lo.Map(s.Variants, func(v shape.Variant, _ int) string { return v.Tag })
}

// ============================================================
// Value skipping
// ============================================================

// skipValue consumes one complete value without building anything. The
// skipped bytes still have to be syntactically valid.
func (d *decodeState) skipValue(path Path) *Error {
	t, err := d.next()
	if err != nil {
		return err.withPath(path)
	}
	switch t.Kind {
	case TokenString, TokenNumber, TokenTrue, TokenFalse, TokenNull:
		return nil
	case TokenObjectStart:
		return d.skipUntil(TokenObjectEnd, true, path)
	case TokenArrayStart:
		return d.skipUntil(TokenArrayEnd, false, path)
	case TokenEOF:
		return errAt(d.src, KindUnexpectedEnd, t.Span, "expected value").withPath(path)
	default:
		return errAt(d.src, KindUnexpectedToken, t.Span, "expected value").withPath(path)
	}
}

// skipUntil consumes the remainder of an object or array with full
// comma and colon checking.
func (d *decodeState) skipUntil(closing TokenKind, isObject bool, path Path) *Error {
	first := true
	for {
		t, err := d.next()
		if err != nil {
			return err.withPath(path)
		}
		if t.Kind == closing && first {
			return nil
		}
		if !first {
			switch t.Kind {
			case closing:
				return nil
			case TokenComma:
				comma := t
				var nerr *Error
				t, nerr = d.next()
				if nerr != nil {
					return nerr.withPath(path)
				}
				if t.Kind == closing {
					return errAt(d.src, KindTrailingComma, comma.Span, "").withPath(path)
				}
			case TokenEOF:
				return errAt(d.src, KindUnexpectedEnd, t.Span, "unclosed "+closing.String()).withPath(path)
			default:
				return errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , or "+closing.String()).withPath(path)
			}
		}
		first = false
		if isObject {
			if t.Kind != TokenString {
				if t.Kind == TokenEOF {
					return errAt(d.src, KindUnexpectedEnd, t.Span, "expected object key").withPath(path)
				}
				return errAt(d.src, KindUnexpectedToken, t.Span,
					"expected object key").withPath(path)
			}
			if _, cerr := d.expect(TokenColon, path); cerr != nil {
				return cerr
			}
			if serr := d.skipValue(path); serr != nil {
				return serr
			}
		} else {
			// t is the first token of the element; push it back.
			d.peeked = t
			d.peekErr = nil
			d.hasPeek = true
			if serr := d.skipValue(path); serr != nil {
				return serr
			}
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
