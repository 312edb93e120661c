package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/blukai/lanparty/internal/byteorder"
	"github.com/blukai/lanparty/internal/zigzag"
)

// Reader consumes what Writer produces.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Rest returns the unread bytes and consumes them.
func (r *Reader) Rest() []byte {
	rest := r.data[r.off:]
	r.off = len(r.data)
	return rest
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w (want %d; have %d)", ErrShortBuffer, n, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return byteorder.Ntohs(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return byteorder.Ntohl(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return byteorder.Ntohll(b), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

func (r *Reader) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: malformed uvarint", ErrShortBuffer)
	}
	r.off += n
	return v, nil
}

func (r *Reader) ReadVarint() (int64, error) {
	v, n := zigzag.Varint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: malformed varint", ErrShortBuffer)
	}
	r.off += n
	return v, nil
}

func (r *Reader) ReadVarint32() (int32, error) {
	u, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("%w: varint exceeds 32 bits", ErrOverflow)
	}
	return zigzag.Decode32(uint32(u)), nil
}

// ReadCount reads a uvarint count and rejects values that could not possibly
// fit into the remaining bytes given that every item takes at least minSize
// bytes.
func (r *Reader) ReadCount(minSize int) (int, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if minSize < 1 {
		minSize = 1
	}
	if n > uint64(r.Remaining()/minSize) {
		return 0, fmt.Errorf("%w: count %d exceeds remaining %d bytes", ErrShortBuffer, n, r.Remaining())
	}
	return int(n), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w (want %d; have %d)", ErrShortBuffer, n, r.Remaining())
	}
	b, _ := r.take(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		return "", fmt.Errorf("%w (want %d; have %d)", ErrShortBuffer, n, r.Remaining())
	}
	b, _ := r.take(int(n))
	return string(b), nil
}
