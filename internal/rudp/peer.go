package rudp

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/blukai/lanparty/internal/byteorder"
	"github.com/blukai/lanparty/internal/codec"
	"github.com/blukai/lanparty/internal/logging"
	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

type addrKey uint64

func makeAddrKey(addr netip.AddrPort) addrKey {
	return addrKey(xxhash.Sum64String(addr.String()))
}

type Config struct {
	// MaxConns is the number of inbound connections a Peer accepts. Zero
	// refuses all inbound connections.
	MaxConns int

	ConnectTimeout time.Duration
	Timeout        time.Duration
	PingInterval   time.Duration
	ResendInterval time.Duration

	// SimulatedLoss silently drops this fraction of outgoing datagrams.
	SimulatedLoss float64
}

func (cfg *Config) setDefaults() {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ResendInterval <= 0 {
		cfg.ResendInterval = DefaultResendInterval
	}
}

type datagram struct {
	addr netip.AddrPort
	data []byte
}

// Peer owns one UDP socket and every connection made through it.
type Peer struct {
	conn *net.UDPConn

	logger *log.Logger
	cfg    Config
	rand   *rand.Rand

	inbox chan datagram
	wg    sync.WaitGroup

	conns  map[addrKey]*Conn
	events []Event
	stats  Stats
	closed bool
}

// Listen binds a UDP socket. Pass ":0" to let the system pick a port and
// Addr to find out which one it picked.
func Listen(network, address string, cfg Config, logger *log.Logger) (*Peer, error) {
	cfg.setDefaults()

	lc := broadcastListenConfig()
	pc, err := lc.ListenPacket(context.Background(), network, address)
	if err != nil {
		return nil, fmt.Errorf("could not listen udp: %w", err)
	}

	p := &Peer{
		conn: pc.(*net.UDPConn),

		logger: logging.OrSilent(logger),
		cfg:    cfg,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),

		inbox: make(chan datagram, 1024),

		conns: make(map[addrKey]*Conn),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runRecv()
	}()

	return p, nil
}

// Addr can be useful to retreive peer's address when it was constructed
// with ":0".
func (p *Peer) Addr() *net.UDPAddr {
	return p.conn.LocalAddr().(*net.UDPAddr)
}

func (p *Peer) Stats() Stats {
	return p.stats
}

// Conns returns the connections that are currently connected.
func (p *Peer) Conns() []*Conn {
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		if c.status == StatusConnected {
			conns = append(conns, c)
		}
	}
	return conns
}

func (p *Peer) runRecv() {
	buf := make([]byte, 64<<10)
	for {
		n, addr, err := p.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			p.logger.Debug().
				Msgf("could not read from udp: %v", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case p.inbox <- datagram{addr: unmap(addr), data: data}:
		default:
			p.logger.Warn().
				Str("addr", addr.String()).
				Msg("inbox full, dropping datagram")
		}
	}
}

// Connect starts connecting to address. The returned Conn reports
// StatusConnected (or StatusDisconnected on failure) through Drain.
// Messages sent before the connection is established are held back.
func (p *Peer) Connect(address string) (*Conn, error) {
	if p.closed {
		return nil, ErrClosed
	}

	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}
	addr := unmap(udpAddr.AddrPort())

	key := makeAddrKey(addr)
	if c, ok := p.conns[key]; ok {
		return c, nil
	}

	c := newConn(p, addr, true)
	c.connectStarted = time.Now()
	p.conns[key] = c

	p.logger.Debug().
		Str("addr", addr.String()).
		Msg("connecting")

	return c, nil
}

// Flush writes queued messages, resends unacknowledged ones and times out
// silent connections.
func (p *Peer) Flush() {
	if p.closed {
		return
	}

	now := time.Now()
	for _, c := range p.conns {
		c.flush(now)
	}
}

// Drain processes every datagram received since the last call and returns
// the resulting events.
func (p *Peer) Drain() []Event {
	now := time.Now()

loop:
	for {
		select {
		case dg := <-p.inbox:
			p.handleDatagram(dg, now)
		default:
			break loop
		}
	}

	events := p.events
	p.events = nil
	return events
}

func (p *Peer) emit(event Event) {
	p.events = append(p.events, event)
}

func (p *Peer) handleDatagram(dg datagram, now time.Time) {
	p.stats.BytesReceived += uint64(len(dg.data))
	p.stats.PacketsReceived++

	if p.closed {
		return
	}
	if len(dg.data) < 5 || byteorder.Ntohl(dg.data[0:4]) != protoID {
		p.logger.Debug().
			Str("addr", dg.addr.String()).
			Int("size", len(dg.data)).
			Msg("dropping foreign datagram")
		return
	}

	typ := rawType(dg.data[4])
	body := dg.data[5:]

	key := makeAddrKey(dg.addr)
	c := p.conns[key]
	if c != nil {
		c.lastRecv = now
	}

	switch typ {
	case rawDiscoveryRequest:
		p.emit(Event{Type: EventDiscoveryRequest, Addr: dg.addr, Payload: body})
	case rawDiscoveryResponse:
		p.emit(Event{Type: EventDiscoveryResponse, Addr: dg.addr, Payload: body})
	case rawConnect:
		p.handleConnect(c, dg.addr, now)
	case rawConnectAck:
		if c != nil && c.status == StatusConnecting {
			c.setConnected(now)
		}
	case rawDisconnect:
		if c == nil {
			return
		}
		reason, err := codec.NewReader(body).ReadString()
		if err != nil {
			reason = "disconnected"
		}
		c.drop(reason)
	case rawPing:
	case rawAck:
		if c != nil {
			c.handleAck(body)
		}
	case rawData:
		switch {
		case c == nil:
			// tell whoever thinks they are talking to us that they are
			// not, so they do not wait for a timeout.
			p.sendDisconnect(dg.addr, "not connected")
		case c.status == StatusConnected:
			c.handleData(body)
		}
	default:
		p.logger.Warn().
			Str("addr", dg.addr.String()).
			Msgf("unknown raw type %d", typ)
	}
}

func (p *Peer) handleConnect(c *Conn, addr netip.AddrPort, now time.Time) {
	if c != nil {
		// a retry whose ack got lost, or both sides connecting at once
		if c.status == StatusConnecting {
			c.setConnected(now)
		}
		p.sendControl(addr, rawConnectAck)
		return
	}

	if p.inboundCount() >= p.cfg.MaxConns {
		p.sendDisconnect(addr, "not accepting connections")
		return
	}

	c = newConn(p, addr, false)
	p.conns[c.key] = c
	p.sendControl(addr, rawConnectAck)
	c.setConnected(now)
}

func (p *Peer) inboundCount() int {
	n := 0
	for _, c := range p.conns {
		if !c.outgoing {
			n++
		}
	}
	return n
}

// SendDiscoveryRequest sends an unconnected probe to address, usually a
// broadcast address. Hosts answer with SendDiscoveryResponse.
func (p *Peer) SendDiscoveryRequest(address string, payload []byte) error {
	if p.closed {
		return ErrClosed
	}
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("could not resolve udp addr: %w", err)
	}
	return p.sendUnconnected(unmap(udpAddr.AddrPort()), rawDiscoveryRequest, payload)
}

func (p *Peer) SendDiscoveryResponse(addr netip.AddrPort, payload []byte) error {
	if p.closed {
		return ErrClosed
	}
	return p.sendUnconnected(addr, rawDiscoveryResponse, payload)
}

func (p *Peer) sendUnconnected(addr netip.AddrPort, typ rawType, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrTooLarge
	}
	w := codec.NewWriter()
	w.WriteUint32(protoID).WriteUint8(uint8(typ)).WriteRaw(payload)
	return p.sendRaw(addr, w.Bytes())
}

func (p *Peer) sendControl(addr netip.AddrPort, typ rawType) error {
	w := codec.NewWriter()
	w.WriteUint32(protoID).WriteUint8(uint8(typ))
	return p.sendRaw(addr, w.Bytes())
}

func (p *Peer) sendDisconnect(addr netip.AddrPort, reason string) error {
	w := codec.NewWriter()
	w.WriteUint32(protoID).WriteUint8(uint8(rawDisconnect)).WriteString(reason)
	return p.sendRaw(addr, w.Bytes())
}

func (p *Peer) sendRaw(addr netip.AddrPort, data []byte) error {
	p.stats.BytesSent += uint64(len(data))
	p.stats.PacketsSent++

	if p.cfg.SimulatedLoss > 0 && p.rand.Float64() < p.cfg.SimulatedLoss {
		return nil
	}

	_, err := p.conn.WriteToUDPAddrPort(data, addr)
	return err
}

// Close tells every connection goodbye and closes the socket. Sends on any
// of the peer's connections fail with ErrClosed afterwards.
func (p *Peer) Close() error {
	if p.closed {
		return nil
	}

	var errs error
	for _, c := range p.conns {
		if c.status != StatusDisconnected {
			if err := p.sendDisconnect(c.addr, "peer closed"); err != nil {
				errs = multierror.Append(errs, err)
			}
			c.status = StatusDisconnected
		}
	}
	p.conns = make(map[addrKey]*Conn)
	p.closed = true

	if err := p.conn.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	p.wg.Wait()

	return errs
}

func unmap(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
