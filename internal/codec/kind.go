// Package codec implements the closed, non self-describing value encoding
// used for command payloads. The reader must know the declared Kind of a
// value before decoding it; nothing on the wire says what follows.
package codec

import "fmt"

// Kind is the declared type of a payload slot.
type Kind uint8

const (
	// KindNone marks a command that carries no payload.
	KindNone Kind = iota
	KindBool
	KindByte
	KindInt8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindBytes
	KindChars
	KindColor
	KindMatrix3x4
	KindMatrix4x4
	KindQuaternion
	KindVector2
	KindVector3
	KindVector4
	KindString

	kindMax
)

var kindNames = [...]string{
	KindNone:       "none",
	KindBool:       "bool",
	KindByte:       "byte",
	KindInt8:       "int8",
	KindInt16:      "int16",
	KindUint16:     "uint16",
	KindInt32:      "int32",
	KindUint32:     "uint32",
	KindInt64:      "int64",
	KindUint64:     "uint64",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindBytes:      "bytes",
	KindChars:      "chars",
	KindColor:      "color",
	KindMatrix3x4:  "matrix3x4",
	KindMatrix4x4:  "matrix4x4",
	KindQuaternion: "quaternion",
	KindVector2:    "vector2",
	KindVector3:    "vector3",
	KindVector4:    "vector4",
	KindString:     "string",
}

func (k Kind) String() string {
	if k < kindMax {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether values of k can be put on the wire.
func (k Kind) Valid() bool {
	return k > KindNone && k < kindMax
}
