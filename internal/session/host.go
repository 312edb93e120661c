package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/blukai/lanparty/internal/debug"
	"github.com/blukai/lanparty/internal/protocol"
	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/rudp"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

// pumpInterval is how often blocking helpers pump a session that is not yet
// handed to the game loop.
const pumpInterval = 5 * time.Millisecond

// Host creates a session with this peer as host and blocks until it is ready
// to accept players.
func Host(ctx context.Context, cfg Config, players []*roster.Player, logger *log.Logger) (*Session, error) {
	cfg.setDefaults()

	var errs error
	if err := cfg.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := cfg.validatePlayers(len(players)); err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		return nil, errs
	}

	switch {
	case cfg.Type == TypeWAN:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Type)
	case cfg.Type.Local():
		return hostLocal(cfg, players, logger), nil
	}

	s := newSession(cfg, true, players, logger)
	if err := s.listen(); err != nil {
		return nil, err
	}
	if err := s.waitJoined(ctx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("could not host session: %w", err)
	}

	s.logger.Info().
		Str("addr", s.Addr().String()).
		Int("max_players", cfg.MaxPlayers).
		Msg("hosting session")
	return s, nil
}

// HostAsync runs Host in the background.
func HostAsync(ctx context.Context, cfg Config, players []*roster.Player, logger *log.Logger) *Future[*Session] {
	return goFuture(func() (*Session, error) {
		return Host(ctx, cfg, players, logger)
	})
}

func hostLocal(cfg Config, players []*roster.Player, logger *log.Logger) *Session {
	s := newSession(cfg, true, players, logger)
	added, _ := s.roster.AddLocalPlayers(roster.Infos(players), netip.AddrPort{})
	for _, p := range added {
		s.playerJoined(p)
	}
	s.joined = true
	return s
}

func (s *Session) listen() error {
	transport := s.cfg.Transport
	transport.MaxConns = s.cfg.MaxPlayers

	address := net.JoinHostPort("", strconv.Itoa(s.cfg.Port))
	server, err := rudp.Listen("udp4", address, transport, s.logger)
	if err != nil {
		return fmt.Errorf("could not start server: %w", err)
	}
	s.server = server

	// the host plays through a client of its own
	transport.MaxConns = 0
	client, err := rudp.Listen("udp4", ":0", transport, s.logger)
	if err != nil {
		server.Close()
		return fmt.Errorf("could not start client: %w", err)
	}
	s.client = client

	loopback := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), uint16(server.Addr().Port))
	s.hostConn, err = client.Connect(loopback.String())
	if err != nil {
		s.teardown()
		return fmt.Errorf("could not connect to own server: %w", err)
	}
	s.roster.SetHostAddress(loopback)
	return nil
}

// waitJoined pumps the session until the host listed the roster to this
// peer.
func (s *Session) waitJoined(ctx context.Context) error {
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	for {
		s.Update()
		if s.joined {
			return nil
		}
		if s.closed || s.hostConn.Status() == rudp.StatusDisconnected {
			reason := s.hostConn.Reason()
			if reason == "" {
				reason = "connection lost"
			}
			return fmt.Errorf("%w: %s", ErrRefused, reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) transition(next State) error {
	s.enter(next)
	if s.server == nil {
		return nil
	}
	return s.broadcast(&protocol.SessionStateChanged{State: uint8(next)}, controlMethod, channelControl, s.selfConn)
}

// broadcast sends m to every connected client but except.
func (s *Session) broadcast(m protocol.Message, method rudp.Method, channel rudp.Channel, except *rudp.Conn) error {
	debug.Assert(s.server != nil)

	payload := protocol.Marshal(m)
	var errs error
	for _, c := range s.server.Conns() {
		if c == except {
			continue
		}
		if err := c.Send(payload, method, channel); err != nil {
			s.logger.Error().
				Str("conn", c.String()).
				Msgf("could not send %s: %v", m.Kind(), err)
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (s *Session) send(c *rudp.Conn, m protocol.Message) {
	if err := c.Send(protocol.Marshal(m), controlMethod, channelControl); err != nil {
		s.logger.Error().
			Str("conn", c.String()).
			Msgf("could not send %s: %v", m.Kind(), err)
	}
}

func (s *Session) handleServerEvent(event rudp.Event) {
	switch event.Type {
	case rudp.EventStatusChanged:
		s.logger.Debug().
			Str("conn", event.Conn.String()).
			Str("reason", event.Reason).
			Msg("client connection status changed")
		if event.Status == rudp.StatusDisconnected {
			s.handleClientLost(event.Conn)
		}
	case rudp.EventData:
		msg, err := protocol.Unmarshal(event.Payload)
		if err != nil {
			s.fail(fmt.Errorf("could not decode message from %s: %w", event.Addr, err))
			return
		}
		s.handleServerMessage(event.Conn, msg)
	case rudp.EventDiscoveryRequest:
		s.handleDiscoveryRequest(event.Addr, event.Payload)
	case rudp.EventDiscoveryResponse:
	default:
		debug.Assertf(false, "unhandled transport event: %d", event.Type)
	}
}

func (s *Session) handleServerMessage(c *rudp.Conn, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.LocalPlayers:
		s.handleLocalPlayers(c, m)
	case *protocol.SynchronizationDone:
		s.handleSynchronizationDone(c)
	case *protocol.ExecuteCommand:
		if m.OnClients {
			s.fail(fmt.Errorf("unexpected %s from %s", m.Kind(), c.Addr()))
			return
		}
		s.handleExecuteCommand(c, m)
	default:
		s.fail(fmt.Errorf("unexpected %s from %s", msg.Kind(), c.Addr()))
	}
}

func (s *Session) handleLocalPlayers(c *rudp.Conn, m *protocol.LocalPlayers) {
	// the first connection must be the host's own client; it is bound once
	if s.selfConn == nil {
		if !s.roster.Owns(m.Players) {
			c.Disconnect(reasonSessionNotReady)
			return
		}
		s.selfConn = c
	}
	isSelf := c == s.selfConn

	incoming := 0
	for _, p := range m.Players {
		if !s.roster.Contains(p.ID) {
			incoming++
		}
	}
	if s.roster.Len()+incoming > s.cfg.MaxPlayers {
		s.logger.Warn().
			Str("conn", c.String()).
			Int("players", incoming).
			Msg("refusing join, session full")
		c.Disconnect(reasonSessionFull)
		return
	}

	added, _ := s.roster.AddLocalPlayers(m.Players, c.Addr())
	for _, p := range added {
		s.playerJoined(p)
	}

	s.send(c, &protocol.PlayersList{Players: s.roster.Entries()})
	if !isSelf {
		// bring a late joiner up to date
		if ids := s.commands.IDs(); len(ids) > 0 {
			s.send(c, &protocol.Commands{IDs: ids})
		}
		if ids := s.entities.IDs(); len(ids) > 0 {
			s.send(c, &protocol.SceneEntities{IDs: ids})
		}
		if s.state != StateLobby {
			s.send(c, &protocol.SessionStateChanged{State: uint8(s.state)})
		}
	}

	if len(added) == 0 {
		return
	}
	// players on the host are announced without an address; clients reach
	// them through their host connection.
	sender := c.Addr()
	if isSelf {
		sender = netip.AddrPort{}
	}
	newPlayers := &protocol.NewPlayers{SenderAddress: sender, Players: roster.Infos(added)}
	for _, other := range s.server.Conns() {
		if other == c || other == s.selfConn {
			continue
		}
		s.send(other, newPlayers)
	}
}

func (s *Session) handleClientLost(c *rudp.Conn) {
	if c == s.selfConn {
		return
	}

	players := s.roster.PlayersAt(c.Addr())
	if len(players) == 0 {
		return
	}

	msg := &protocol.DisconnectedPlayers{IDs: make([]string, 0, len(players))}
	for _, p := range players {
		if _, ok := s.roster.RecordDeparture(p.ID()); !ok {
			continue
		}
		delete(s.syncing, p.ID())
		msg.IDs = append(msg.IDs, p.ID())
		s.playerLeft(p)
	}
	if err := s.broadcast(msg, controlMethod, channelControl, s.selfConn); err != nil {
		s.logger.Warn().Msgf("could not announce departures: %v", err)
	}
	s.checkSyncGate()
}

func (s *Session) handleSynchronizationDone(c *rudp.Conn) {
	if s.state != StateStarting {
		s.logger.Debug().
			Str("conn", c.String()).
			Str("state", s.state.String()).
			Msg("ignoring late synchronization report")
		return
	}

	for _, p := range s.roster.PlayersAt(c.Addr()) {
		delete(s.syncing, p.ID())
	}
	s.logger.Debug().
		Str("conn", c.String()).
		Int("still_syncing", len(s.syncing)).
		Msg("synchronization done")
	s.checkSyncGate()
}

// checkSyncGate starts playing once nobody is syncing anymore.
func (s *Session) checkSyncGate() {
	if s.state != StateStarting || len(s.syncing) > 0 {
		return
	}
	if err := s.transition(StatePlaying); err != nil {
		s.logger.Warn().Msgf("could not announce playing: %v", err)
	}
}

func (s *Session) handleExecuteCommand(c *rudp.Conn, m *protocol.ExecuteCommand) {
	reply, err := s.commands.Serve(m)
	if err != nil {
		s.fail(fmt.Errorf("could not execute command %d for %s: %w", m.CommandID, c.Addr(), err))
		return
	}

	method, channel := delivery(reply.Command.Transfer)
	if !reply.Broadcast {
		if err := c.Send(protocol.Marshal(reply.Message), method, channel); err != nil {
			s.logger.Error().
				Str("conn", c.String()).
				Msgf("could not acknowledge command: %v", err)
		}
		return
	}
	if err := s.broadcast(reply.Message, method, channel, nil); err != nil {
		s.logger.Warn().Msgf("could not broadcast command result: %v", err)
	}
}

func (s *Session) openSlots() (private, public int) {
	private = s.cfg.PrivateSlots
	public = max(0, s.cfg.MaxPlayers-s.cfg.PrivateSlots-s.roster.Len())
	return private, public
}

func (s *Session) handleDiscoveryRequest(addr netip.AddrPort, payload []byte) {
	req := protocol.DiscoveryRequest{}
	if err := req.UnmarshalBinary(payload); err != nil {
		s.logger.Warn().
			Str("addr", addr.String()).
			Msgf("could not decode discovery request: %v", err)
		return
	}
	if req.App != protocol.AppFingerprint(s.cfg.AppName) {
		return
	}

	private, public := s.openSlots()
	res := protocol.DiscoveryResponse{
		SessionType:      uint8(s.cfg.Type),
		PlayerCount:      s.roster.Len(),
		OpenPrivateSlots: private,
		OpenPublicSlots:  public,
		Properties:       s.cfg.Properties,
	}
	data, err := res.MarshalBinary()
	debug.Assert(err == nil)
	if err := s.server.SendDiscoveryResponse(addr, data); err != nil && !errors.Is(err, rudp.ErrClosed) {
		s.logger.Warn().
			Str("addr", addr.String()).
			Msgf("could not answer discovery request: %v", err)
	}
}
