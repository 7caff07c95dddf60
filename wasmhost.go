package wasmhost

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies one of the four core WebAssembly scalar types.
type ValueKind uint8

const (
	KindI32 ValueKind = iota
	KindI64
	KindF32
	KindF64
)

// String returns the type name as spelled in the WebAssembly text format.
func (k ValueKind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged WebAssembly scalar. Arguments and results of every
// invocation are sequences of Values. The raw bits use the same encoding
// wazero's stack does: integers sign-extended, floats via IEEE 754 bits.
type Value struct {
	bits uint64
	kind ValueKind
}

func I32(v int32) Value   { return Value{bits: uint64(uint32(v)), kind: KindI32} }
func I64(v int64) Value   { return Value{bits: uint64(v), kind: KindI64} }
func F32(v float32) Value { return Value{bits: uint64(math.Float32bits(v)), kind: KindF32} }
func F64(v float64) Value { return Value{bits: math.Float64bits(v), kind: KindF64} }

// Kind returns the value's type tag.
func (v Value) Kind() ValueKind { return v.kind }

// Raw returns the stack encoding of the value.
func (v Value) Raw() uint64 { return v.bits }

// FromRaw builds a Value from a stack word and its declared kind.
func FromRaw(kind ValueKind, bits uint64) Value {
	return Value{bits: bits, kind: kind}
}

// I32 interprets the value as a signed 32-bit integer.
func (v Value) I32() int32 { return int32(uint32(v.bits)) }

// I64 interprets the value as a signed 64-bit integer.
func (v Value) I64() int64 { return int64(v.bits) }

// F32 interprets the value as a 32-bit float.
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.bits)) }

// F64 interprets the value as a 64-bit float.
func (v Value) F64() float64 { return math.Float64frombits(v.bits) }

func (v Value) String() string {
	switch v.kind {
	case KindI32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case KindI64:
		return strconv.FormatInt(v.I64(), 10)
	case KindF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case KindF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	default:
		return "invalid"
	}
}

// ParseValue parses text into a Value of the given kind. Used by callers
// that receive arguments as strings, such as the CLI.
func ParseValue(kind ValueKind, s string) (Value, error) {
	switch kind {
	case KindI32:
		n, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as i32: %w", s, err)
		}
		return I32(int32(n)), nil
	case KindI64:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as i64: %w", s, err)
		}
		return I64(n), nil
	case KindF32:
		n, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as f32: %w", s, err)
		}
		return F32(float32(n)), nil
	case KindF64:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as f64: %w", s, err)
		}
		return F64(n), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %d", kind)
	}
}

// Memory represents WASM linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of WASM linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}
