package sigil

// Reformat rewrites a document at the token level, with no target
// shape: indent of "" gives the compact form, anything else the pretty
// form. String escapes are re-encoded canonically and numbers keep
// their literal text, so values never change meaning.
func Reformat(data []byte, indent string) ([]byte, *Error) {
	d := &decodeState{src: data, tok: NewTokenizer(data)}
	e := &encoder{indent: indent}
	if err := reformatValue(d, e, nil); err != nil {
		return nil, err
	}
	if err := d.requireEOF(); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func reformatValue(d *decodeState, e *encoder, path Path) *Error {
	t, err := d.next()
	if err != nil {
		return err.withPath(path)
	}
	switch t.Kind {
	case TokenNull:
		e.buf = append(e.buf, "null"...)
	case TokenTrue:
		e.buf = append(e.buf, "true"...)
	case TokenFalse:
		e.buf = append(e.buf, "false"...)
	case TokenNumber:
		e.buf = append(e.buf, t.Bytes()...)
	case TokenString:
		out, qerr := appendQuoted(e.buf, t.Text())
		if qerr != nil {
			return qerr.withPath(path)
		}
		e.buf = out
	case TokenObjectStart:
		return reformatObject(d, e, path)
	case TokenArrayStart:
		return reformatArray(d, e, path)
	case TokenEOF:
		return errAt(d.src, KindUnexpectedEnd, t.Span, "expected value").withPath(path)
	default:
		return errAt(d.src, KindUnexpectedToken, t.Span, "expected value").withPath(path)
	}
	return nil
}

func reformatObject(d *decodeState, e *encoder, path Path) *Error {
	e.buf = append(e.buf, '{')
	e.depth++
	first := true
	for {
		t, err := d.next()
		if err != nil {
			return err.withPath(path)
		}
		if t.Kind == TokenObjectEnd && first {
			e.depth--
			e.buf = append(e.buf, '}')
			return nil
		}
		if !first {
			switch t.Kind {
			case TokenObjectEnd:
				e.depth--
				if e.pretty() {
					e.newline()
				}
				e.buf = append(e.buf, '}')
				return nil
			case TokenComma:
				e.buf = append(e.buf, ',')
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
			return errAt(d.src, KindUnexpectedToken, t.Span, "expected object key").withPath(path)
		}
		if e.pretty() {
			e.newline()
		}
		out, qerr := appendQuoted(e.buf, t.Text())
		if qerr != nil {
			return qerr.withPath(path)
		}
		e.buf = out
		e.buf = append(e.buf, ':')
		if e.pretty() {
			e.buf = append(e.buf, ' ')
		}
		if _, cerr := d.expect(TokenColon, path); cerr != nil {
			return cerr
		}
		if verr := reformatValue(d, e, path.key(t.Text())); verr != nil {
			return verr
		}
	}
}

func reformatArray(d *decodeState, e *encoder, path Path) *Error {
	e.buf = append(e.buf, '[')
	e.depth++
	i := 0
	for {
		t, err := d.peek()
		if err != nil {
			return err.withPath(path)
		}
		if t.Kind == TokenArrayEnd && i == 0 {
			d.hasPeek = false
			e.depth--
			e.buf = append(e.buf, ']')
			return nil
		}
		if i > 0 {
			switch t.Kind {
			case TokenArrayEnd:
				d.hasPeek = false
				e.depth--
				if e.pretty() {
					e.newline()
				}
				e.buf = append(e.buf, ']')
				return nil
			case TokenComma:
				d.hasPeek = false
				e.buf = append(e.buf, ',')
				nt, nerr := d.peek()
				if nerr != nil {
					return nerr.withPath(path)
				}
				if nt.Kind == TokenArrayEnd {
					return errAt(d.src, KindTrailingComma, t.Span, "").withPath(path)
				}
			default:
				return errAt(d.src, KindUnexpectedToken, t.Span,
					"expected , or ] in array").withPath(path)
			}
		}
		if e.pretty() {
			e.newline()
		}
		if verr := reformatValue(d, e, path.index(i)); verr != nil {
			return verr
		}
		i++
	}
}
