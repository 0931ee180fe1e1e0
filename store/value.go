package store

import (
	"bytes"
	"math"

	"github.com/cshekharsharma/coredoc/errtype"
)

func float64bits(f float64) uint64    { return math.Float64bits(f) }
func float64frombits(u uint64) float64 { return math.Float64frombits(u) }

// Value tags mirror spec.md's value taxonomy: null, bool, number, string,
// bytes, and a container reference (by arena index, resolved by the
// caller after decode).
const (
	valTagNull byte = iota
	valTagBool
	valTagInt
	valTagFloat
	valTagString
	valTagBytes
	valTagContainerRef
)

func putValue(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteByte(valTagNull)
	case bool:
		buf.WriteByte(valTagBool)
		if x {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case int64:
		buf.WriteByte(valTagInt)
		putVarint(buf, x)
	case int:
		buf.WriteByte(valTagInt)
		putVarint(buf, int64(x))
	case float64:
		buf.WriteByte(valTagFloat)
		putUvarint(buf, float64bits(x))
	case string:
		buf.WriteByte(valTagString)
		putUvarint(buf, uint64(len(x)))
		buf.WriteString(x)
	case []byte:
		buf.WriteByte(valTagBytes)
		putUvarint(buf, uint64(len(x)))
		buf.Write(x)
	case ContainerRef:
		buf.WriteByte(valTagContainerRef)
		putUvarint(buf, uint64(x))
	default:
		// Unreachable for values produced by this engine's own encoders;
		// treated as null rather than panicking on a foreign value type.
		buf.WriteByte(valTagNull)
	}
}

// ContainerRef is a value variant pointing at a child container by its
// arena index, used when a List/Map entry's value is itself a container.
type ContainerRef int

func getValue(r *bytes.Reader) (any, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valTagNull:
		return nil, nil
	case valTagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case valTagInt:
		return getVarint(r)
	case valTagFloat:
		u, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		return float64frombits(u), nil
	case valTagString:
		n, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
		return string(b), nil
	case valTagBytes:
		n, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
		return b, nil
	case valTagContainerRef:
		u, err := getUvarint(r)
		if err != nil {
			return nil, err
		}
		return ContainerRef(u), nil
	default:
		return nil, errtype.NewDecodeDataCorruption("unknown value tag %d", tag)
	}
}
