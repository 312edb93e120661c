package codec_test

import (
	"errors"
	"math"
	"testing"

	"github.com/blukai/lanparty/internal/codec"
	"github.com/matryer/is"
)

func TestValueRoundTrip(t *testing.T) {
	is := is.New(t)

	testCases := []codec.Value{
		codec.Bool(true),
		codec.Bool(false),
		codec.Byte(0),
		codec.Byte(math.MaxUint8),
		codec.Int8(-1),
		codec.Int8(math.MinInt8),
		codec.Int16(math.MaxInt16),
		codec.Int16(math.MinInt16),
		codec.Uint16(math.MaxUint16),
		codec.Int32(0),
		codec.Int32(-1),
		codec.Int32(math.MaxInt32),
		codec.Int32(math.MinInt32),
		codec.Uint32(math.MaxUint32),
		codec.Int64(math.MinInt64),
		codec.Int64(math.MaxInt64),
		codec.Uint64(math.MaxUint64),
		codec.Float32(0),
		codec.Float32(-1.5),
		codec.Float32(math.MaxFloat32),
		codec.Float32(math.SmallestNonzeroFloat32),
		codec.Float64(math.Pi),
		codec.Float64(-math.MaxFloat64),
		codec.Bytes{0, 1, 2, 0xff},
		codec.Chars([]rune("héllo, 世界")),
		codec.Color{R: 0.25, G: 0.5, B: 1},
		codec.Matrix3x4{1, 0, 0, 10, 0, 1, 0, 20, 0, 0, 1, 30},
		codec.Matrix4x4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		codec.Vector2{X: 1, Y: -1},
		codec.Vector3{X: 1, Y: 2, Z: 3},
		codec.Vector4{X: -4, Y: 3, Z: -2, W: 1},
		codec.String(""),
		codec.String("Alice"),
	}

	for _, tc := range testCases {
		data, err := codec.Marshal(tc.Kind(), tc)
		is.NoErr(err)

		decoded, err := codec.Unmarshal(data, tc.Kind())
		is.NoErr(err)
		is.Equal(decoded, tc)
	}
}

func TestIntegersAreVarints(t *testing.T) {
	is := is.New(t)

	testCases := []struct {
		v    codec.Value
		size int
	}{
		{codec.Int16(-1), 1},
		{codec.Int32(0), 1},
		{codec.Int32(-64), 1},
		{codec.Int32(64), 2},
		{codec.Uint16(127), 1},
		{codec.Uint32(300), 2},
		{codec.Int64(-1), 1},
		{codec.Int64(math.MinInt64), 10},
		{codec.Uint64(math.MaxUint64), 10},
	}

	for _, tc := range testCases {
		data, err := codec.Marshal(tc.v.Kind(), tc.v)
		is.NoErr(err)
		is.Equal(len(data), tc.size)
	}
}

func TestIntegerOverflow(t *testing.T) {
	is := is.New(t)

	data, err := codec.Marshal(codec.KindInt32, codec.Int32(40000))
	is.NoErr(err)
	_, err = codec.Unmarshal(data, codec.KindInt16)
	is.True(errors.Is(err, codec.ErrOverflow))

	data, err = codec.Marshal(codec.KindUint32, codec.Uint32(70000))
	is.NoErr(err)
	_, err = codec.Unmarshal(data, codec.KindUint16)
	is.True(errors.Is(err, codec.ErrOverflow))

	data, err = codec.Marshal(codec.KindInt64, codec.Int64(math.MaxInt64))
	is.NoErr(err)
	_, err = codec.Unmarshal(data, codec.KindInt32)
	is.True(errors.Is(err, codec.ErrOverflow))
}

func TestFloatBits(t *testing.T) {
	is := is.New(t)

	negZero := codec.Float32(math.Copysign(0, -1))
	data, err := codec.Marshal(codec.KindFloat32, negZero)
	is.NoErr(err)
	is.Equal(data, []byte{0x80, 0, 0, 0})

	decoded, err := codec.Unmarshal(data, codec.KindFloat32)
	is.NoErr(err)
	is.Equal(math.Float32bits(float32(decoded.(codec.Float32))), math.Float32bits(float32(negZero)))
}

func TestColorTravelsAsVector4(t *testing.T) {
	is := is.New(t)

	data, err := codec.Marshal(codec.KindColor, codec.Color{R: 1, G: 1, B: 1})
	is.NoErr(err)
	is.Equal(len(data), 16)

	// alpha comes last and is pinned to 1
	alpha, err := codec.Unmarshal(data[12:], codec.KindFloat32)
	is.NoErr(err)
	is.Equal(alpha, codec.Float32(1))
}

func TestQuaternionCompression(t *testing.T) {
	is := is.New(t)

	testCases := []codec.Quaternion{
		{X: 0, Y: 0, Z: 0, W: 1},
		{X: 1, Y: 0, Z: 0, W: 0},
		{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5},
		{X: -0.5, Y: 0.5, Z: -0.5, W: -0.5},
		{X: 0.1826, Y: 0.3651, Z: 0.5477, W: 0.7303},
	}

	for _, tc := range testCases {
		data, err := codec.Marshal(codec.KindQuaternion, tc)
		is.NoErr(err)
		is.Equal(len(data), 3) // 24 bits

		decoded, err := codec.Unmarshal(data, codec.KindQuaternion)
		is.NoErr(err)
		q := decoded.(codec.Quaternion)

		// q and -q are the same rotation
		dot := q.X*tc.X + q.Y*tc.Y + q.Z*tc.Z + q.W*tc.W
		is.True(math.Abs(float64(dot)) > 0.999)

		// decoding is stable
		again, err := codec.Marshal(codec.KindQuaternion, q)
		is.NoErr(err)
		is.Equal(again, data)
	}
}

func TestEncodeErrors(t *testing.T) {
	is := is.New(t)

	w := codec.NewWriter()

	err := codec.Encode(w, codec.KindNone, codec.Bool(true))
	is.True(errors.Is(err, codec.ErrUnsupportedValueType))

	err = codec.Encode(w, codec.Kind(200), codec.Bool(true))
	is.True(errors.Is(err, codec.ErrUnsupportedValueType))

	err = codec.Encode(w, codec.KindInt32, codec.Int64(1))
	is.True(errors.Is(err, codec.ErrTypeMismatch))

	err = codec.Encode(w, codec.KindInt32, nil)
	is.True(errors.Is(err, codec.ErrMissingValue))

	is.Equal(w.Len(), 0) // nothing written on failure
}

func TestDecodeErrors(t *testing.T) {
	is := is.New(t)

	_, err := codec.Decode(codec.NewReader([]byte{1, 2, 3, 4}), codec.Kind(99))
	is.True(errors.Is(err, codec.ErrUnsupportedValueType))

	// varint continuation bit set on the last byte
	_, err = codec.Decode(codec.NewReader([]byte{0x80, 0x80}), codec.KindInt32)
	is.True(errors.Is(err, codec.ErrShortBuffer))

	// length prefix claims more than there is
	_, err = codec.Decode(codec.NewReader([]byte{10, 'a', 'b'}), codec.KindString)
	is.True(errors.Is(err, codec.ErrShortBuffer))

	_, err = codec.Unmarshal([]byte{1, 0}, codec.KindBool)
	is.True(err != nil) // trailing byte
}

func TestKindString(t *testing.T) {
	is := is.New(t)

	is.Equal(codec.KindVector3.String(), "vector3")
	is.Equal(codec.Kind(250).String(), "kind(250)")
	is.True(!codec.KindNone.Valid())
	is.True(codec.KindString.Valid())
}
