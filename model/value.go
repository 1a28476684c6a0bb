package model

import "fmt"

// ValueKind tags the variant inhabited by a Value. Exactly one variant is
// ever populated for a given Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindTimestamp
	KindVarbinary
)

// Value is the sum type carried by every Point tag/field and every Row
// column. Construct one via the *Value constructors below; read it back with
// the matching As* accessor. A Value is immutable once built.
type Value struct {
	kind ValueKind

	b   bool
	i   int64
	u   uint64
	f64 float64
	f32 float32
	s   string
	buf []byte
}

func (v Value) Kind() ValueKind { return v.kind }

func NullValue() Value              { return Value{kind: KindNull} }
func BoolValue(b bool) Value        { return Value{kind: KindBool, b: b} }
func Int8Value(n int8) Value        { return Value{kind: KindInt8, i: int64(n)} }
func Int16Value(n int16) Value      { return Value{kind: KindInt16, i: int64(n)} }
func Int32Value(n int32) Value      { return Value{kind: KindInt32, i: int64(n)} }
func Int64Value(n int64) Value      { return Value{kind: KindInt64, i: n} }
func Uint8Value(n uint8) Value      { return Value{kind: KindUint8, u: uint64(n)} }
func Uint16Value(n uint16) Value    { return Value{kind: KindUint16, u: uint64(n)} }
func Uint32Value(n uint32) Value    { return Value{kind: KindUint32, u: uint64(n)} }
func Uint64Value(n uint64) Value    { return Value{kind: KindUint64, u: n} }
func Float32Value(f float32) Value  { return Value{kind: KindFloat32, f32: f} }
func Float64Value(f float64) Value  { return Value{kind: KindFloat64, f64: f} }
func StringValue(s string) Value    { return Value{kind: KindString, s: s} }
func TimestampValue(ms int64) Value { return Value{kind: KindTimestamp, i: ms} }
func VarbinaryValue(buf []byte) Value {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	return Value{kind: KindVarbinary, buf: cp}
}

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt64() (int64, bool)     { return v.i, isInt(v.kind) }
func (v Value) AsUint64() (uint64, bool)   { return v.u, isUint(v.kind) }
func (v Value) AsFloat32() (float32, bool) { return v.f32, v.kind == KindFloat32 }
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsTimestamp() (int64, bool) { return v.i, v.kind == KindTimestamp }
func (v Value) AsVarbinary() ([]byte, bool) {
	if v.kind != KindVarbinary {
		return nil, false
	}
	cp := make([]byte, len(v.buf))
	copy(cp, v.buf)
	return cp, true
}

func isInt(k ValueKind) bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

func isUint(k ValueKind) bool {
	switch k {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return fmt.Sprintf("%d", v.u)
	case KindFloat32:
		return fmt.Sprintf("%g", v.f32)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f64)
	case KindString:
		return v.s
	case KindTimestamp:
		return fmt.Sprintf("ts(%d)", v.i)
	case KindVarbinary:
		return fmt.Sprintf("varbinary(%d bytes)", len(v.buf))
	default:
		return "unknown"
	}
}
