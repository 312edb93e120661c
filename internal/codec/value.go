package codec

// Value is one of the closed set of payload types below. The set is sealed:
// types outside this package cannot implement it.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	Bool    bool
	Byte    uint8
	Int8    int8
	Int16   int16
	Uint16  uint16
	Int32   int32
	Uint32  uint32
	Int64   int64
	Uint64  uint64
	Float32 float32
	Float64 float64
	Bytes   []byte
	Chars   []rune
	String  string
)

// Color is an rgb color. It travels as a 4 component vector with alpha
// pinned to 1.
type Color struct{ R, G, B float32 }

// Matrix3x4 is a row-major affine transform without the projective row.
type Matrix3x4 [12]float32

// Matrix4x4 is a row-major transform.
type Matrix4x4 [16]float32

// Quaternion is a rotation. It is compressed to 24 bits on the wire, so
// decoding yields an approximation of the (normalized) input.
type Quaternion struct{ X, Y, Z, W float32 }

type Vector2 struct{ X, Y float32 }

type Vector3 struct{ X, Y, Z float32 }

type Vector4 struct{ X, Y, Z, W float32 }

func (Bool) Kind() Kind       { return KindBool }
func (Byte) Kind() Kind       { return KindByte }
func (Int8) Kind() Kind       { return KindInt8 }
func (Int16) Kind() Kind      { return KindInt16 }
func (Uint16) Kind() Kind     { return KindUint16 }
func (Int32) Kind() Kind      { return KindInt32 }
func (Uint32) Kind() Kind     { return KindUint32 }
func (Int64) Kind() Kind      { return KindInt64 }
func (Uint64) Kind() Kind     { return KindUint64 }
func (Float32) Kind() Kind    { return KindFloat32 }
func (Float64) Kind() Kind    { return KindFloat64 }
func (Bytes) Kind() Kind      { return KindBytes }
func (Chars) Kind() Kind      { return KindChars }
func (String) Kind() Kind     { return KindString }
func (Color) Kind() Kind      { return KindColor }
func (Matrix3x4) Kind() Kind  { return KindMatrix3x4 }
func (Matrix4x4) Kind() Kind  { return KindMatrix4x4 }
func (Quaternion) Kind() Kind { return KindQuaternion }
func (Vector2) Kind() Kind    { return KindVector2 }
func (Vector3) Kind() Kind    { return KindVector3 }
func (Vector4) Kind() Kind    { return KindVector4 }

func (Bool) isValue()       {}
func (Byte) isValue()       {}
func (Int8) isValue()       {}
func (Int16) isValue()      {}
func (Uint16) isValue()     {}
func (Int32) isValue()      {}
func (Uint32) isValue()     {}
func (Int64) isValue()      {}
func (Uint64) isValue()     {}
func (Float32) isValue()    {}
func (Float64) isValue()    {}
func (Bytes) isValue()      {}
func (Chars) isValue()      {}
func (String) isValue()     {}
func (Color) isValue()      {}
func (Matrix3x4) isValue()  {}
func (Matrix4x4) isValue()  {}
func (Quaternion) isValue() {}
func (Vector2) isValue()    {}
func (Vector3) isValue()    {}
func (Vector4) isValue()    {}
