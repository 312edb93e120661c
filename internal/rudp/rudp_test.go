package rudp_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blukai/lanparty/internal/rudp"
	"github.com/matryer/is"
)

type pumped struct {
	peers  []*rudp.Peer
	events [][]rudp.Event
}

func newPumped(peers ...*rudp.Peer) *pumped {
	return &pumped{peers: peers, events: make([][]rudp.Event, len(peers))}
}

func (p *pumped) step() {
	for i, peer := range p.peers {
		peer.Flush()
		p.events[i] = append(p.events[i], peer.Drain()...)
	}
}

func (p *pumped) until(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		p.step()
		time.Sleep(time.Millisecond)
	}
}

func statusEvents(events []rudp.Event, status rudp.Status) []rudp.Event {
	var out []rudp.Event
	for _, ev := range events {
		if ev.Type == rudp.EventStatusChanged && ev.Status == status {
			out = append(out, ev)
		}
	}
	return out
}

func dataEvents(events []rudp.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == rudp.EventData {
			out = append(out, string(ev.Payload))
		}
	}
	return out
}

func listen(t *testing.T, cfg rudp.Config) *rudp.Peer {
	t.Helper()
	peer, err := rudp.Listen("udp4", "127.0.0.1:0", cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { peer.Close() })
	return peer
}

func connected(t *testing.T, serverCfg, clientCfg rudp.Config) (*pumped, *rudp.Conn) {
	t.Helper()
	is := is.New(t)

	server := listen(t, serverCfg)
	client := listen(t, clientCfg)

	conn, err := client.Connect(server.Addr().String())
	is.NoErr(err)
	is.Equal(conn.Status(), rudp.StatusConnecting)

	p := newPumped(server, client)
	p.until(t, func() bool {
		return len(statusEvents(p.events[0], rudp.StatusConnected)) == 1 &&
			len(statusEvents(p.events[1], rudp.StatusConnected)) == 1
	})
	return p, conn
}

func TestConnect(t *testing.T) {
	is := is.New(t)

	p, conn := connected(t, rudp.Config{MaxConns: 4}, rudp.Config{})
	is.Equal(conn.Status(), rudp.StatusConnected)
	is.Equal(len(p.peers[0].Conns()), 1)
	is.Equal(p.peers[0].Conns()[0].Addr().Port(), uint16(p.peers[1].Addr().Port))
}

func TestRefusedWhenNotAccepting(t *testing.T) {
	is := is.New(t)

	server := listen(t, rudp.Config{})
	client := listen(t, rudp.Config{})

	conn, err := client.Connect(server.Addr().String())
	is.NoErr(err)

	p := newPumped(server, client)
	p.until(t, func() bool {
		return len(statusEvents(p.events[1], rudp.StatusDisconnected)) == 1
	})
	is.Equal(conn.Reason(), "not accepting connections")
	is.Equal(len(statusEvents(p.events[0], rudp.StatusConnected)), 0)
}

func TestReliableOrderedUnderLoss(t *testing.T) {
	is := is.New(t)

	lossy := rudp.Config{MaxConns: 1, SimulatedLoss: 0.3, ResendInterval: 10 * time.Millisecond}
	p, conn := connected(t, lossy, lossy)

	const n = 100
	for i := 0; i < n; i++ {
		is.NoErr(conn.Send([]byte(fmt.Sprint(i)), rudp.ReliableOrdered, 0))
	}

	p.until(t, func() bool { return len(dataEvents(p.events[0])) >= n })

	got := dataEvents(p.events[0])
	is.Equal(len(got), n)
	for i, payload := range got {
		is.Equal(payload, fmt.Sprint(i))
	}

	p.until(t, func() bool { return conn.Unacked() == 0 })
}

func TestReliableUnorderedUnderLoss(t *testing.T) {
	is := is.New(t)

	lossy := rudp.Config{MaxConns: 1, SimulatedLoss: 0.3, ResendInterval: 10 * time.Millisecond}
	p, conn := connected(t, lossy, lossy)

	const n = 100
	for i := 0; i < n; i++ {
		is.NoErr(conn.Send([]byte(fmt.Sprint(i)), rudp.ReliableUnordered, 1))
	}

	p.until(t, func() bool { return conn.Unacked() == 0 })

	got := dataEvents(p.events[0])
	is.Equal(len(got), n) // exactly once
	seen := make(map[string]bool)
	for _, payload := range got {
		seen[payload] = true
	}
	is.Equal(len(seen), n)
}

func TestSequencedDropsStale(t *testing.T) {
	is := is.New(t)

	p, conn := connected(t, rudp.Config{MaxConns: 1}, rudp.Config{})

	for i := 0; i < 10; i++ {
		is.NoErr(conn.Send([]byte(fmt.Sprint(i)), rudp.ReliableSequenced, 0))
	}
	p.until(t, func() bool { return conn.Unacked() == 0 })

	got := dataEvents(p.events[0])
	is.True(len(got) >= 1)
	is.Equal(got[len(got)-1], "9")
	for i := 1; i < len(got); i++ {
		is.True(got[i-1] < got[i]) // never goes backwards
	}
}

func TestDisconnect(t *testing.T) {
	is := is.New(t)

	p, conn := connected(t, rudp.Config{MaxConns: 1}, rudp.Config{})

	conn.Disconnect("bye")
	is.Equal(conn.Status(), rudp.StatusDisconnected)

	err := conn.Send([]byte("late"), rudp.ReliableOrdered, 0)
	is.True(errors.Is(err, rudp.ErrNotConnected))

	p.until(t, func() bool {
		return len(statusEvents(p.events[0], rudp.StatusDisconnected)) == 1
	})
	is.Equal(statusEvents(p.events[0], rudp.StatusDisconnected)[0].Reason, "bye")
	is.Equal(len(p.peers[0].Conns()), 0)
}

func TestTimeout(t *testing.T) {
	is := is.New(t)

	p, _ := connected(t,
		rudp.Config{MaxConns: 1, Timeout: 300 * time.Millisecond, PingInterval: 50 * time.Millisecond},
		rudp.Config{},
	)

	// only the server keeps pumping; the client goes quiet.
	server := newPumped(p.peers[0])
	server.until(t, func() bool {
		return len(statusEvents(server.events[0], rudp.StatusDisconnected)) == 1
	})
	is.Equal(statusEvents(server.events[0], rudp.StatusDisconnected)[0].Reason, "timed out")
}

func TestDiscovery(t *testing.T) {
	is := is.New(t)

	server := listen(t, rudp.Config{MaxConns: 1})
	client := listen(t, rudp.Config{})
	p := newPumped(server, client)

	is.NoErr(client.SendDiscoveryRequest(server.Addr().String(), []byte("who")))

	p.until(t, func() bool { return len(p.events[0]) == 1 })
	req := p.events[0][0]
	is.Equal(req.Type, rudp.EventDiscoveryRequest)
	is.Equal(string(req.Payload), "who")

	is.NoErr(server.SendDiscoveryResponse(req.Addr, []byte("me")))

	p.until(t, func() bool { return len(p.events[1]) == 1 })
	resp := p.events[1][0]
	is.Equal(resp.Type, rudp.EventDiscoveryResponse)
	is.Equal(string(resp.Payload), "me")
	is.Equal(int(resp.Addr.Port()), server.Addr().Port)

	// unconnected traffic does not create connections
	is.Equal(len(server.Conns()), 0)
}

func TestSendAfterClose(t *testing.T) {
	is := is.New(t)

	p, conn := connected(t, rudp.Config{MaxConns: 1}, rudp.Config{})

	is.NoErr(p.peers[1].Close())

	err := conn.Send([]byte("x"), rudp.Unreliable, 0)
	is.True(errors.Is(err, rudp.ErrClosed))

	// the other side is told
	server := newPumped(p.peers[0])
	server.until(t, func() bool {
		return len(statusEvents(server.events[0], rudp.StatusDisconnected)) == 1
	})
	is.Equal(statusEvents(server.events[0], rudp.StatusDisconnected)[0].Reason, "peer closed")
}

func TestStats(t *testing.T) {
	is := is.New(t)

	p, conn := connected(t, rudp.Config{MaxConns: 1}, rudp.Config{})
	before := p.peers[0].Stats()

	is.NoErr(conn.Send(make([]byte, 100), rudp.Unreliable, 0))
	p.until(t, func() bool { return len(dataEvents(p.events[0])) == 1 })

	after := p.peers[0].Stats()
	is.True(after.BytesReceived-before.BytesReceived >= 100)
	is.True(p.peers[1].Stats().BytesSent >= 100)
}
