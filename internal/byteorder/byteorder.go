package byteorder

import (
	"encoding/binary"
)

// https://linux.die.net/man/3/ntohs
// https://github.com/vishvananda/netlink/blob/e5fd1f8193dee65ec93fafde8faf67e32a34692a/order.go

// decrypt names:
// h  = host
// n  = network
// s  = short     = 16 bit
// l  = long      = 32 bit
// ll = long long = 64 bit
//
// hton* append to an existing buffer, the codec writer grows one.

func AppendHtons(buf []byte, val uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, val)
}

func AppendHtonl(buf []byte, val uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, val)
}

func AppendHtonll(buf []byte, val uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, val)
}

func Ntohs(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}

func Ntohl(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

func Ntohll(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}
