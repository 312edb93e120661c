package codec

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnsupportedValueType = errors.New("unsupported value type")
	ErrTypeMismatch         = errors.New("value does not match declared kind")
	ErrMissingValue         = errors.New("missing value")
	ErrShortBuffer          = errors.New("short buffer")
	ErrOverflow             = errors.New("integer overflows its kind")
)

// Encode writes v, which must be of the declared kind.
func Encode(w *Writer, kind Kind, v Value) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedValueType, kind)
	}
	if v == nil {
		return fmt.Errorf("%w (declared %s)", ErrMissingValue, kind)
	}
	if v.Kind() != kind {
		return fmt.Errorf("%w (got %s; want %s)", ErrTypeMismatch, v.Kind(), kind)
	}

	switch kind {
	case KindBool:
		w.WriteBool(bool(v.(Bool)))
	case KindByte:
		w.WriteUint8(uint8(v.(Byte)))
	case KindInt8:
		w.WriteInt8(int8(v.(Int8)))
	case KindInt16:
		w.WriteVarint32(int32(v.(Int16)))
	case KindUint16:
		w.WriteUvarint(uint64(v.(Uint16)))
	case KindInt32:
		w.WriteVarint32(int32(v.(Int32)))
	case KindUint32:
		w.WriteUvarint(uint64(v.(Uint32)))
	case KindInt64:
		w.WriteVarint(int64(v.(Int64)))
	case KindUint64:
		w.WriteUvarint(uint64(v.(Uint64)))
	case KindFloat32:
		w.WriteFloat32(float32(v.(Float32)))
	case KindFloat64:
		w.WriteFloat64(float64(v.(Float64)))
	case KindBytes:
		w.WriteBytes(v.(Bytes))
	case KindChars:
		chars := v.(Chars)
		w.WriteUvarint(uint64(len(chars)))
		for _, c := range chars {
			w.WriteUvarint(uint64(uint32(c)))
		}
	case KindColor:
		c := v.(Color)
		writeFloats(w, c.R, c.G, c.B, 1)
	case KindMatrix3x4:
		m := v.(Matrix3x4)
		writeFloats(w, m[:]...)
	case KindMatrix4x4:
		m := v.(Matrix4x4)
		writeFloats(w, m[:]...)
	case KindQuaternion:
		packed := compressQuaternion(v.(Quaternion))
		w.WriteUint8(uint8(packed >> 16))
		w.WriteUint16(uint16(packed))
	case KindVector2:
		vec := v.(Vector2)
		writeFloats(w, vec.X, vec.Y)
	case KindVector3:
		vec := v.(Vector3)
		writeFloats(w, vec.X, vec.Y, vec.Z)
	case KindVector4:
		vec := v.(Vector4)
		writeFloats(w, vec.X, vec.Y, vec.Z, vec.W)
	case KindString:
		w.WriteString(string(v.(String)))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedValueType, kind)
	}
	return nil
}

// Decode reads a value of the declared kind.
func Decode(r *Reader, kind Kind) (Value, error) {
	switch kind {
	case KindBool:
		v, err := r.ReadBool()
		return Bool(v), err
	case KindByte:
		v, err := r.ReadUint8()
		return Byte(v), err
	case KindInt8:
		v, err := r.ReadInt8()
		return Int8(v), err
	case KindInt16:
		v, err := r.ReadVarint32()
		if err == nil && (v < math.MinInt16 || v > math.MaxInt16) {
			err = fmt.Errorf("%w: %d as %s", ErrOverflow, v, kind)
		}
		return Int16(v), err
	case KindUint16:
		v, err := readUvarintMax(r, kind, math.MaxUint16)
		return Uint16(v), err
	case KindInt32:
		v, err := r.ReadVarint32()
		return Int32(v), err
	case KindUint32:
		v, err := readUvarintMax(r, kind, math.MaxUint32)
		return Uint32(v), err
	case KindInt64:
		v, err := r.ReadVarint()
		return Int64(v), err
	case KindUint64:
		v, err := r.ReadUvarint()
		return Uint64(v), err
	case KindFloat32:
		v, err := r.ReadFloat32()
		return Float32(v), err
	case KindFloat64:
		v, err := r.ReadFloat64()
		return Float64(v), err
	case KindBytes:
		v, err := r.ReadBytes()
		return Bytes(v), err
	case KindChars:
		n, err := r.ReadCount(1)
		if err != nil {
			return nil, err
		}
		chars := make(Chars, n)
		for i := range chars {
			c, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			chars[i] = rune(uint32(c))
		}
		return chars, nil
	case KindColor:
		var f [4]float32
		if err := readFloats(r, f[:]); err != nil {
			return nil, err
		}
		return Color{R: f[0], G: f[1], B: f[2]}, nil
	case KindMatrix3x4:
		var m Matrix3x4
		err := readFloats(r, m[:])
		return m, err
	case KindMatrix4x4:
		var m Matrix4x4
		err := readFloats(r, m[:])
		return m, err
	case KindQuaternion:
		hi, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		lo, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		return decompressQuaternion(uint32(hi)<<16 | uint32(lo)), nil
	case KindVector2:
		var f [2]float32
		err := readFloats(r, f[:])
		return Vector2{X: f[0], Y: f[1]}, err
	case KindVector3:
		var f [3]float32
		err := readFloats(r, f[:])
		return Vector3{X: f[0], Y: f[1], Z: f[2]}, err
	case KindVector4:
		var f [4]float32
		err := readFloats(r, f[:])
		return Vector4{X: f[0], Y: f[1], Z: f[2], W: f[3]}, err
	case KindString:
		v, err := r.ReadString()
		return String(v), err
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedValueType, kind)
	}
}

// Marshal encodes a single value into a fresh buffer.
func Marshal(kind Kind, v Value) ([]byte, error) {
	w := NewWriter()
	if err := Encode(w, kind, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes a single value and requires data to be fully consumed.
func Unmarshal(data []byte, kind Kind) (Value, error) {
	r := NewReader(data)
	v, err := Decode(r, kind)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %s value", r.Remaining(), kind)
	}
	return v, nil
}

func readUvarintMax(r *Reader, kind Kind, max uint64) (uint64, error) {
	v, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, fmt.Errorf("%w: %d as %s", ErrOverflow, v, kind)
	}
	return v, nil
}

func writeFloats(w *Writer, fs ...float32) {
	for _, f := range fs {
		w.WriteFloat32(f)
	}
}

func readFloats(r *Reader, dst []float32) error {
	for i := range dst {
		f, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		dst[i] = f
	}
	return nil
}
