package rudp

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/blukai/lanparty/internal/codec"
)

type streamKey struct {
	method  Method
	channel Channel
}

type pending struct {
	data    []byte
	sentAt  time.Time
	resends int
}

type sendStream struct {
	next    seqnum
	unacked map[seqnum]*pending
}

type recvStream struct {
	next seqnum
	// ordered: payloads that arrived ahead of next.
	// unordered: markers (nil) for seqnums delivered ahead of next.
	buffered map[seqnum][]byte
}

type outgoing struct {
	data    []byte
	pending *pending
}

// Conn is one connection of a Peer. It is not safe for concurrent use; all
// calls must come from the goroutine that drives the Peer.
type Conn struct {
	peer     *Peer
	addr     netip.AddrPort
	key      addrKey
	outgoing bool

	status Status
	reason string

	connectStarted     time.Time
	lastConnectAttempt time.Time
	lastRecv           time.Time
	lastSend           time.Time

	queue []outgoing
	send  map[streamKey]*sendStream
	recv  map[streamKey]*recvStream
}

func newConn(p *Peer, addr netip.AddrPort, outgoing bool) *Conn {
	return &Conn{
		peer:     p,
		addr:     addr,
		key:      makeAddrKey(addr),
		outgoing: outgoing,

		status: StatusConnecting,

		send: make(map[streamKey]*sendStream),
		recv: make(map[streamKey]*recvStream),
	}
}

func (c *Conn) Addr() netip.AddrPort {
	return c.addr
}

func (c *Conn) Status() Status {
	return c.status
}

// Reason is why the connection was disconnected.
func (c *Conn) Reason() string {
	return c.reason
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s (%s)", c.addr, c.status)
}

// Send queues payload for the next Flush.
func (c *Conn) Send(payload []byte, method Method, channel Channel) error {
	if c.peer.closed {
		return ErrClosed
	}
	if c.status == StatusDisconnected {
		return ErrNotConnected
	}
	if method >= methodMax {
		return fmt.Errorf("invalid delivery method %d", method)
	}
	if channel >= ChannelCount {
		return fmt.Errorf("invalid channel %d", channel)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w (got %d; max %d)", ErrTooLarge, len(payload), MaxPayloadSize)
	}

	w := codec.NewWriter()
	w.WriteUint32(protoID).
		WriteUint8(uint8(rawData)).
		WriteUint8(uint8(method)).
		WriteUint8(uint8(channel))

	out := outgoing{}
	if method.sequenced() {
		key := streamKey{method: method, channel: channel}
		s, ok := c.send[key]
		if !ok {
			s = &sendStream{unacked: make(map[seqnum]*pending)}
			c.send[key] = s
		}
		seq := s.next
		s.next++
		w.WriteUint16(uint16(seq))
		w.WriteRaw(payload)

		if method.reliable() {
			out.pending = &pending{data: w.Bytes()}
			s.unacked[seq] = out.pending
		}
	} else {
		w.WriteRaw(payload)
	}
	out.data = w.Bytes()

	c.queue = append(c.queue, out)
	return nil
}

// Disconnect tells the remote end goodbye and drops the connection.
func (c *Conn) Disconnect(reason string) {
	if c.status == StatusDisconnected {
		return
	}
	if !c.peer.closed {
		c.peer.sendDisconnect(c.addr, reason)
	}
	c.drop(reason)
}

// Unacked returns the number of reliable messages still waiting for an ack.
func (c *Conn) Unacked() int {
	n := 0
	for _, s := range c.send {
		n += len(s.unacked)
	}
	return n
}

func (c *Conn) setConnected(now time.Time) {
	c.status = StatusConnected
	c.lastRecv = now
	c.peer.emit(Event{Type: EventStatusChanged, Conn: c, Addr: c.addr, Status: StatusConnected})
}

func (c *Conn) drop(reason string) {
	if c.status == StatusDisconnected {
		return
	}
	c.status = StatusDisconnected
	c.reason = reason
	c.queue = nil
	delete(c.peer.conns, c.key)
	c.peer.emit(Event{
		Type:   EventStatusChanged,
		Conn:   c,
		Addr:   c.addr,
		Status: StatusDisconnected,
		Reason: reason,
	})
}

func (c *Conn) write(data []byte, now time.Time) {
	c.lastSend = now
	if err := c.peer.sendRaw(c.addr, data); err != nil {
		c.peer.logger.Debug().
			Str("addr", c.addr.String()).
			Msgf("could not write: %v", err)
	}
}

func (c *Conn) writeControl(typ rawType, now time.Time) {
	w := codec.NewWriter()
	w.WriteUint32(protoID).WriteUint8(uint8(typ))
	c.write(w.Bytes(), now)
}

func (c *Conn) flush(now time.Time) {
	cfg := &c.peer.cfg

	switch c.status {
	case StatusDisconnected:
		return
	case StatusConnecting:
		if now.Sub(c.connectStarted) > cfg.ConnectTimeout {
			c.drop("connect timed out")
			return
		}
		if now.Sub(c.lastConnectAttempt) >= cfg.ResendInterval {
			c.lastConnectAttempt = now
			c.writeControl(rawConnect, now)
		}
		return
	}

	if now.Sub(c.lastRecv) > cfg.Timeout {
		c.drop("timed out")
		return
	}

	for _, out := range c.queue {
		c.write(out.data, now)
		if out.pending != nil {
			out.pending.sentAt = now
		}
	}
	c.queue = c.queue[:0]

	for _, s := range c.send {
		for _, p := range s.unacked {
			if p.sentAt.IsZero() || now.Sub(p.sentAt) < cfg.ResendInterval {
				continue
			}
			c.write(p.data, now)
			p.sentAt = now
			p.resends++
		}
	}

	if now.Sub(c.lastSend) >= cfg.PingInterval {
		c.writeControl(rawPing, now)
	}
}

func (c *Conn) handleAck(body []byte) {
	r := codec.NewReader(body)
	method, err := r.ReadUint8()
	if err != nil {
		return
	}
	channel, err := r.ReadUint8()
	if err != nil {
		return
	}
	seq, err := r.ReadUint16()
	if err != nil {
		return
	}

	s, ok := c.send[streamKey{method: Method(method), channel: Channel(channel)}]
	if !ok {
		return
	}
	delete(s.unacked, seqnum(seq))
}

func (c *Conn) writeAck(key streamKey, seq seqnum) {
	w := codec.NewWriter()
	w.WriteUint32(protoID).
		WriteUint8(uint8(rawAck)).
		WriteUint8(uint8(key.method)).
		WriteUint8(uint8(key.channel)).
		WriteUint16(uint16(seq))
	c.write(w.Bytes(), time.Now())
}

func (c *Conn) deliver(key streamKey, payload []byte) {
	c.peer.emit(Event{
		Type:    EventData,
		Conn:    c,
		Addr:    c.addr,
		Payload: payload,
		Method:  key.method,
		Channel: key.channel,
	})
}

func (c *Conn) handleData(body []byte) {
	r := codec.NewReader(body)
	method, err := r.ReadUint8()
	if err != nil {
		return
	}
	channel, err := r.ReadUint8()
	if err != nil {
		return
	}
	key := streamKey{method: Method(method), channel: Channel(channel)}
	if key.method >= methodMax || key.channel >= ChannelCount {
		c.peer.logger.Warn().
			Str("addr", c.addr.String()).
			Msgf("invalid stream (method %d; channel %d)", method, channel)
		return
	}

	if !key.method.sequenced() {
		c.deliver(key, r.Rest())
		return
	}

	raw, err := r.ReadUint16()
	if err != nil {
		return
	}
	seq := seqnum(raw)
	payload := r.Rest()

	s, ok := c.recv[key]
	if !ok {
		s = &recvStream{buffered: make(map[seqnum][]byte)}
		c.recv[key] = s
	}

	ack := true
	switch key.method {
	case UnreliableSequenced, ReliableSequenced:
		if seq == s.next || seq.newerThan(s.next) {
			s.next = seq + 1
			c.deliver(key, payload)
		}
	case ReliableUnordered:
		switch {
		case seq == s.next:
			c.deliver(key, payload)
			s.next++
			for {
				if _, ok := s.buffered[s.next]; !ok {
					break
				}
				delete(s.buffered, s.next)
				s.next++
			}
		case seq.newerThan(s.next):
			if _, seen := s.buffered[seq]; seen {
				break
			}
			if len(s.buffered) >= maxBuffered {
				ack = false
				break
			}
			s.buffered[seq] = nil
			c.deliver(key, payload)
		}
	case ReliableOrdered:
		switch {
		case seq == s.next:
			c.deliver(key, payload)
			s.next++
			for {
				next, ok := s.buffered[s.next]
				if !ok {
					break
				}
				delete(s.buffered, s.next)
				c.deliver(key, next)
				s.next++
			}
		case seq.newerThan(s.next):
			if _, seen := s.buffered[seq]; seen {
				break
			}
			if len(s.buffered) >= maxBuffered {
				ack = false
				break
			}
			s.buffered[seq] = payload
		}
	}

	if ack && key.method.reliable() {
		c.writeAck(key, seq)
	}
}
