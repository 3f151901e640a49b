package shape

import (
	"reflect"

	"github.com/samber/lo"
)

// Partial tracks which fields of an aggregate value have been
// initialized so far. Decoders fill a destination field by field; when a
// nested decode fails mid-way, Teardown zeroes exactly the fields that
// were filled, leaving no half-built state visible to the caller.
type Partial struct {
	shape *Shape
	dst   reflect.Value
	bits  []uint64
}

// NewPartial wraps an addressable struct or tuple destination.
func NewPartial(s *Shape, dst reflect.Value) *Partial {
	n := len(s.Fields)
	if s.Kind == Tuple {
		n = len(s.Elems)
	}
	return &Partial{
		shape: s,
		dst:   dst,
		bits:  make([]uint64, (n+63)/64),
	}
}

// Field returns the addressable destination for field i.
func (p *Partial) Field(i int) reflect.Value {
	if p.shape.Kind == Tuple {
		if p.dst.Kind() == reflect.Struct {
			return p.dst.Field(p.structIndex(i))
		}
		return p.dst.Index(i)
	}
	return p.dst.Field(p.shape.Fields[i].Index)
}

// structIndex maps tuple slot i to the i-th exported field of a tuple
// struct.
func (p *Partial) structIndex(i int) int {
	seen := 0
	t := p.dst.Type()
	for j := 0; j < t.NumField(); j++ {
		if !t.Field(j).IsExported() {
			continue
		}
		if seen == i {
			return j
		}
		seen++
	}
	return -1
}

// Mark records field i as initialized. Decoders call it only after the
// nested decode into Field(i) fully succeeded.
func (p *Partial) Mark(i int) {
	p.bits[i/64] |= 1 << (i % 64)
}

// IsSet reports whether field i has been marked.
func (p *Partial) IsSet(i int) bool {
	return p.bits[i/64]&(1<<(i%64)) != 0
}

// Missing returns the wire names of required struct fields that were
// never marked, in declaration order.
func (p *Partial) Missing() []string {
	return lo.FilterMap(p.shape.Fields, func(f Field, i int) (string, bool) {
		return f.Name, !p.IsSet(i) && !f.Optional && f.Default == nil
	})
}

// FillDefaults marks every unset field that declares a default provider
// and writes the default into it.
func (p *Partial) FillDefaults() {
	for i := range p.shape.Fields {
		f := &p.shape.Fields[i]
		if p.IsSet(i) || f.Default == nil {
			continue
		}
		p.Field(i).Set(f.Default())
		p.Mark(i)
	}
}

// Teardown zeroes the marked fields and clears the bitset. Unmarked
// fields are untouched, so a destination the caller pre-populated keeps
// whatever the decoder never reached.
func (p *Partial) Teardown() {
	n := len(p.shape.Fields)
	if p.shape.Kind == Tuple {
		n = len(p.shape.Elems)
	}
	for i := 0; i < n; i++ {
		if p.IsSet(i) {
			f := p.Field(i)
			// An embedded field of an unexported type cannot be set as a
			// whole; its promoted fields are torn down by their own
			// Partial.
			if f.CanSet() {
				f.Set(reflect.Zero(f.Type()))
			}
		}
	}
	for i := range p.bits {
		p.bits[i] = 0
	}
}
