// Package objval defines the typed value union shared by the KO object
// format's data pool and the KSM load format's argument section. Both
// containers store the same tagged values; the linker moves values between
// them without ever re-encoding their payload.
package objval

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Tag identifies the kind of a Value, matching the wire encoding used by
// both the KO data section and the KSM argument section.
type Tag byte

const (
	TagNull Tag = iota
	TagBool
	TagByte
	TagInt16
	TagInt32
	TagFloat
	TagDouble
	TagString
	TagArgMarker
	TagScalarInt
	TagScalarDouble
	TagBoolValue
	TagStringValue
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "Null"
	case TagBool:
		return "Bool"
	case TagByte:
		return "Byte"
	case TagInt16:
		return "Int16"
	case TagInt32:
		return "Int32"
	case TagFloat:
		return "Float"
	case TagDouble:
		return "Double"
	case TagString:
		return "String"
	case TagArgMarker:
		return "ArgMarker"
	case TagScalarInt:
		return "ScalarInt"
	case TagScalarDouble:
		return "ScalarDouble"
	case TagBoolValue:
		return "BoolValue"
	case TagStringValue:
		return "StringValue"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

// Value is an immutable typed value stored in a data pool or argument
// section. Only one of the typed fields is meaningful, selected by Tag.
type Value struct {
	Tag    Tag
	Bool   bool
	Byte   byte
	Int16  int16
	Int32  int32
	Float  float32
	Double float64
	Str    string
}

func Null() Value { return Value{Tag: TagNull} }
func Bool(b bool) Value { return Value{Tag: TagBool, Bool: b} }
func Byte(b byte) Value { return Value{Tag: TagByte, Byte: b} }
func Int16(i int16) Value { return Value{Tag: TagInt16, Int16: i} }
func Int32(i int32) Value { return Value{Tag: TagInt32, Int32: i} }
func Float(f float32) Value { return Value{Tag: TagFloat, Float: f} }
func Double(d float64) Value { return Value{Tag: TagDouble, Double: d} }
func String(s string) Value { return Value{Tag: TagString, Str: s} }
func ArgMarker() Value { return Value{Tag: TagArgMarker} }
func ScalarInt(i int32) Value { return Value{Tag: TagScalarInt, Int32: i} }
func ScalarDouble(d float64) Value { return Value{Tag: TagScalarDouble, Double: d} }
func BoolValue(b bool) Value { return Value{Tag: TagBoolValue, Bool: b} }
func StringValue(s string) Value { return Value{Tag: TagStringValue, Str: s} }

// SizeBytes returns the number of bytes this value occupies in the argument
// section, including its leading tag byte.
func (v Value) SizeBytes() int {
	switch v.Tag {
	case TagNull, TagArgMarker:
		return 1
	case TagBool, TagByte, TagBoolValue:
		return 2
	case TagInt16:
		return 3
	case TagInt32, TagFloat, TagScalarInt:
		return 5
	case TagDouble, TagScalarDouble:
		return 9
	case TagString, TagStringValue:
		return 2 + len(v.Str)
	default:
		panic(fmt.Sprintf("objval: unknown tag %v", v.Tag))
	}
}

// Hash returns a content hash of the value, used to deduplicate entries in
// a data table or argument section. Two values that compare Equal hash the
// same, except that Float and Double payloads are hashed by their %g
// rendering, so 0.0 and -0.0 compare Equal but hash differently.
func (v Value) Hash() uint64 {
	var buf [16]byte
	buf[0] = byte(v.Tag)
	n := 1
	switch v.Tag {
	case TagNull, TagArgMarker:
	case TagBool, TagBoolValue:
		if v.Bool {
			buf[1] = 1
		}
		n = 2
	case TagByte:
		buf[1] = v.Byte
		n = 2
	case TagInt16:
		buf[1] = byte(v.Int16)
		buf[2] = byte(v.Int16 >> 8)
		n = 3
	case TagInt32, TagScalarInt:
		u := uint32(v.Int32)
		buf[1], buf[2], buf[3], buf[4] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
		n = 5
	case TagFloat:
		return xxhash.Sum64String(fmt.Sprintf("f:%d:%g", v.Tag, v.Float))
	case TagDouble, TagScalarDouble:
		return xxhash.Sum64String(fmt.Sprintf("d:%d:%g", v.Tag, v.Double))
	case TagString, TagStringValue:
		return xxhash.Sum64String(fmt.Sprintf("s:%d:%s", v.Tag, v.Str))
	default:
		panic(fmt.Sprintf("objval: unknown tag %v", v.Tag))
	}
	return xxhash.Sum64(buf[:n])
}

// Equal reports whether two values have the same tag and payload.
func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	switch v.Tag {
	case TagNull, TagArgMarker:
		return v.Tag.String()
	case TagBool, TagBoolValue:
		return fmt.Sprintf("%s(%v)", v.Tag, v.Bool)
	case TagByte:
		return fmt.Sprintf("%s(%d)", v.Tag, v.Byte)
	case TagInt16:
		return fmt.Sprintf("%s(%d)", v.Tag, v.Int16)
	case TagInt32, TagScalarInt:
		return fmt.Sprintf("%s(%d)", v.Tag, v.Int32)
	case TagFloat:
		return fmt.Sprintf("%s(%g)", v.Tag, v.Float)
	case TagDouble, TagScalarDouble:
		return fmt.Sprintf("%s(%g)", v.Tag, v.Double)
	case TagString, TagStringValue:
		return fmt.Sprintf("%s(%q)", v.Tag, v.Str)
	default:
		return v.Tag.String()
	}
}
