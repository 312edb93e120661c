package sessiontest_test

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"testing"
	"time"

	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/rudp"
	"github.com/blukai/lanparty/internal/session"
	"github.com/matryer/is"
)

const testTimeout = 5 * time.Second

// peer records the events of a session as it is pumped.
type peer struct {
	*session.Session
	events []session.Event
}

func (p *peer) update() {
	p.Update()
	p.events = append(p.events, p.PollEvents()...)
}

func (p *peer) count(typ session.EventType) int {
	n := 0
	for _, e := range p.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (p *peer) left() []string {
	var ids []string
	for _, e := range p.events {
		if e.Type == session.EventPlayerLeft {
			ids = append(ids, e.Player.ID())
		}
	}
	slices.Sort(ids)
	return ids
}

func playerIDs(players []*roster.Player) []string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID()
	}
	slices.Sort(ids)
	return ids
}

func config(maxPlayers int) session.Config {
	return session.Config{
		Type:       session.TypeLAN,
		MaxPlayers: maxPlayers,
		AppName:    "sessiontest",
		Transport: rudp.Config{
			ResendInterval: 20 * time.Millisecond,
			PingInterval:   100 * time.Millisecond,
			Timeout:        2 * time.Second,
		},
		DiscoveryTimeout: 300 * time.Millisecond,
	}
}

// freePort finds a port nothing listens on, so tests do not fight over
// session.DefaultPort.
func freePort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		t.Fatalf("could not find a free port: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func hostSession(t *testing.T, is *is.I, cfg session.Config, players ...*roster.Player) *peer {
	t.Helper()

	if cfg.Port == 0 {
		cfg.Port = freePort(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	s, err := session.Host(ctx, cfg, players, nil)
	is.NoErr(err)
	t.Cleanup(func() { s.Close() })

	h := &peer{Session: s}
	h.events = append(h.events, s.PollEvents()...)
	return h
}

// pumpUntil updates peers until cond holds.
func pumpUntil(t *testing.T, cond func() bool, peers ...*peer) {
	t.Helper()

	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		for _, p := range peers {
			p.update()
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// await pumps peers while f runs in the background.
func await[T any](t *testing.T, f *session.Future[T], peers ...*peer) (T, error) {
	t.Helper()

	pumpUntil(t, func() bool {
		status, _, _ := f.Poll()
		return status != session.FuturePending
	}, peers...)
	return f.Wait(context.Background())
}

func discover(t *testing.T, cfg session.Config, h *peer, filter session.Filter) []session.AvailableSession {
	t.Helper()

	cfg.DiscoveryAddr = fmt.Sprintf("127.0.0.1:%d", h.Addr().Port())
	found, err := await(t, session.FindSessionsAsync(context.Background(), cfg, filter, nil), h)
	if err != nil {
		t.Fatalf("could not find sessions: %v", err)
	}
	return found
}

func joinSession(t *testing.T, cfg session.Config, h *peer, others []*peer, players ...*roster.Player) (*peer, error) {
	t.Helper()

	available := session.AvailableSession{
		Addr: netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), h.Addr().Port()),
		Type: session.TypeLAN,
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	s, err := await(t, session.JoinAsync(ctx, cfg, available, players, nil), append([]*peer{h}, others...)...)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { s.Close() })

	c := &peer{Session: s}
	c.events = append(c.events, s.PollEvents()...)
	return c, nil
}
