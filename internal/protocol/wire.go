package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// encoder appends protobuf fields in field-number order. Zero values are
// omitted the way proto2 optional fields left unset are; use the *Always
// variants for fields the client requires even when zero.
type encoder struct {
	b []byte
}

func (e *encoder) uvarint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.uvarintAlways(num, v)
}

func (e *encoder) uvarintAlways(num protowire.Number, v uint64) {
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) int64(num protowire.Number, v int64) {
	e.uvarint(num, uint64(v))
}

func (e *encoder) int64Always(num protowire.Number, v int64) {
	e.uvarintAlways(num, uint64(v))
}

// int32 sign-extends to 64 bits, as protobuf does for negative int32 values.
func (e *encoder) int32(num protowire.Number, v int32) {
	e.uvarint(num, uint64(int64(v)))
}

func (e *encoder) uint32(num protowire.Number, v uint32) {
	e.uvarint(num, uint64(v))
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uvarintAlways(num, 1)
	}
}

func (e *encoder) boolAlways(num protowire.Number, v bool) {
	e.uvarintAlways(num, protowire.EncodeBool(v))
}

func (e *encoder) float32(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.Fixed32Type)
	e.b = protowire.AppendFixed32(e.b, math.Float32bits(v))
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.bytesAlways(num, v)
}

// bytesAlways writes the field even when v is empty, which is how an
// embedded message with all fields unset is encoded.
func (e *encoder) bytesAlways(num protowire.Number, v []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

// field is one decoded protobuf field. For varint and fixed types the value
// is in u, for length-delimited fields in buf.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	buf []byte
}

func (f field) int64() int64     { return int64(f.u) }
func (f field) int32() int32     { return int32(f.u) }
func (f field) uint32() uint32   { return uint32(f.u) }
func (f field) bool() bool       { return f.u != 0 }
func (f field) float32() float32 { return math.Float32frombits(uint32(f.u)) }
func (f field) string() string   { return string(f.buf) }

// walk calls fn for every field in b. Unknown fields and types are passed to
// fn as well; callers ignore what they do not know.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: tag: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.buf, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
