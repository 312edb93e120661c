// Package rudp implements connections with selectable delivery guarantees on
// top of a single UDP socket.
//
// Every datagram starts with:
//
//	protoID uint32
//	rawType uint8
//	...
//
// Protocol work is cooperative: a Peer never touches connection state from
// its background reader. The owner calls Flush and Drain from one goroutine,
// usually once per frame.
package rudp

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

var (
	ErrClosed       = errors.New("peer closed")
	ErrNotConnected = errors.New("not connected")
	ErrTooLarge     = errors.New("payload too large")
)

// protoID must be at the start of every datagram; anything else is dropped.
const protoID uint32 = 0x4c505459

const (
	MaxDatagramSize = 4 << 10
	// header of the largest framing (data with seqnum)
	maxHeaderSize  = 4 + 1 + 1 + 1 + 2
	MaxPayloadSize = MaxDatagramSize - maxHeaderSize
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 10 * time.Second
	DefaultPingInterval   = time.Second
	DefaultResendInterval = 200 * time.Millisecond

	// bounds out of order buffering per stream
	maxBuffered = 1024
)

type rawType uint8

const (
	rawConnect rawType = iota

	rawConnectAck

	rawDisconnect
	// reason string

	rawPing // keeps a quiet connection alive

	rawAck
	// method, channel uint8
	// seqnum

	rawData
	// method, channel uint8
	// [seqnum unless Unreliable]
	// payload...

	rawDiscoveryRequest
	// payload...

	rawDiscoveryResponse
	// payload...
)

// Method is a delivery guarantee.
type Method uint8

const (
	// Unreliable messages may be dropped, duplicated or reordered.
	Unreliable Method = iota
	// UnreliableSequenced messages may be dropped; stale ones are.
	UnreliableSequenced
	// ReliableUnordered messages arrive exactly once in any order.
	ReliableUnordered
	// ReliableSequenced messages are resent until acked but only the newest
	// is delivered; late arrivals are dropped.
	ReliableSequenced
	// ReliableOrdered messages arrive exactly once in send order.
	ReliableOrdered

	methodMax
)

var methodNames = [...]string{
	Unreliable:          "unreliable",
	UnreliableSequenced: "unreliable-sequenced",
	ReliableUnordered:   "reliable-unordered",
	ReliableSequenced:   "reliable-sequenced",
	ReliableOrdered:     "reliable-ordered",
}

func (m Method) String() string {
	if m < methodMax {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

func (m Method) reliable() bool {
	return m == ReliableUnordered || m == ReliableSequenced || m == ReliableOrdered
}

func (m Method) sequenced() bool {
	return m != Unreliable
}

// Channel separates independent streams of the same Method. Ordering is only
// guaranteed within one (Method, Channel) pair. A Channel must be less than
// ChannelCount.
type Channel uint8

const ChannelCount Channel = 4

// seqnums are sequence numbers used to maintain reliable order and to
// detect duplicates and stale messages. They wrap around.
type seqnum uint16

func (a seqnum) newerThan(b seqnum) bool {
	return int16(a-b) > 0
}

type Status uint8

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type EventType uint8

const (
	// EventStatusChanged reports a Conn moving to Status.
	EventStatusChanged EventType = iota
	// EventData carries an application payload from Conn.
	EventData
	// EventDiscoveryRequest is an unconnected probe from Addr.
	EventDiscoveryRequest
	// EventDiscoveryResponse is an unconnected answer from Addr.
	EventDiscoveryResponse
)

// Event is what Drain hands to the owner.
type Event struct {
	Type    EventType
	Conn    *Conn
	Addr    netip.AddrPort
	Status  Status
	Reason  string
	Payload []byte
	Method  Method
	Channel Channel
}

// Stats are cumulative socket counters.
type Stats struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
}
