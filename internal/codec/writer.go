package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/blukai/lanparty/internal/byteorder"
	"github.com/blukai/lanparty/internal/zigzag"
)

// Writer appends big-endian fixed width values and varint encoded integers,
// lengths and counts to a growing buffer. Writes never fail.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

func (w *Writer) WriteUint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) WriteInt8(v int8) *Writer {
	return w.WriteUint8(uint8(v))
}

func (w *Writer) WriteUint16(v uint16) *Writer {
	w.buf = byteorder.AppendHtons(w.buf, v)
	return w
}

func (w *Writer) WriteUint32(v uint32) *Writer {
	w.buf = byteorder.AppendHtonl(w.buf, v)
	return w
}

func (w *Writer) WriteInt32(v int32) *Writer {
	return w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) *Writer {
	w.buf = byteorder.AppendHtonll(w.buf, v)
	return w
}

func (w *Writer) WriteFloat32(v float32) *Writer {
	return w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) *Writer {
	return w.WriteUint64(math.Float64bits(v))
}

// WriteUvarint writes a variable-length unsigned integer. Counts and lengths
// use this.
func (w *Writer) WriteUvarint(v uint64) *Writer {
	w.buf = binary.AppendUvarint(w.buf, v)
	return w
}

// WriteVarint writes a zigzag encoded variable-length signed integer.
func (w *Writer) WriteVarint(v int64) *Writer {
	w.buf = zigzag.AppendVarint(w.buf, v)
	return w
}

// WriteVarint32 is WriteVarint for values that fit 32 bits.
func (w *Writer) WriteVarint32(v int32) *Writer {
	return w.WriteUvarint(uint64(zigzag.Encode32(v)))
}

// WriteBytes writes a length-prefixed byte slice.
func (w *Writer) WriteBytes(v []byte) *Writer {
	w.WriteUvarint(uint64(len(v)))
	w.buf = append(w.buf, v...)
	return w
}

// WriteString writes a length-prefixed utf-8 string.
func (w *Writer) WriteString(v string) *Writer {
	w.WriteUvarint(uint64(len(v)))
	w.buf = append(w.buf, v...)
	return w
}

// WriteRaw appends v as is.
func (w *Writer) WriteRaw(v []byte) *Writer {
	w.buf = append(w.buf, v...)
	return w
}

func (w *Writer) String() string {
	return fmt.Sprintf("Writer[%d bytes]: %x", len(w.buf), w.buf)
}
