package session

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/blukai/lanparty/internal/debug"
	"github.com/blukai/lanparty/internal/protocol"
	"github.com/blukai/lanparty/internal/ptr"
	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/rudp"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

// Join connects to a discovered session and blocks until the host listed its
// roster. A host that is full refuses the join with ErrRefused.
func Join(ctx context.Context, cfg Config, available AvailableSession, players []*roster.Player, logger *log.Logger) (*Session, error) {
	cfg.setDefaults()
	cfg.Type = available.Type
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = available.PlayerCount + available.OpenPrivateSlots + available.OpenPublicSlots
	}
	cfg.Properties = available.Properties

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
	if cfg.Type != TypeLAN {
		return nil, fmt.Errorf("%w: cannot join %s session", ErrUnsupported, cfg.Type)
	}

	s := newSession(cfg, false, players, logger)

	transport := cfg.Transport
	transport.MaxConns = 0
	client, err := rudp.Listen("udp4", ":0", transport, s.logger)
	if err != nil {
		return nil, fmt.Errorf("could not start client: %w", err)
	}
	s.client = client

	s.hostConn, err = client.Connect(available.Addr.String())
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("could not connect to host: %w", err)
	}
	s.roster.SetHostAddress(available.Addr)

	if err := s.waitJoined(ctx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("could not join session at %s: %w", available.Addr, err)
	}

	s.logger.Info().
		Str("host", available.Addr.String()).
		Int("players", s.roster.Len()).
		Msg("joined session")
	return s, nil
}

// JoinAsync runs Join in the background.
func JoinAsync(ctx context.Context, cfg Config, available AvailableSession, players []*roster.Player, logger *log.Logger) *Future[*Session] {
	return goFuture(func() (*Session, error) {
		return Join(ctx, cfg, available, players, logger)
	})
}

func (s *Session) handleClientEvent(event rudp.Event) {
	switch event.Type {
	case rudp.EventStatusChanged:
		if event.Conn != s.hostConn {
			return
		}
		switch event.Status {
		case rudp.StatusConnected:
			s.logger.Debug().
				Str("host", event.Addr.String()).
				Msg("connected to host, announcing local players")
			s.send(s.hostConn, &protocol.LocalPlayers{Players: roster.Infos(s.roster.Identities())})
		case rudp.StatusDisconnected:
			s.handleHostLost(event.Reason)
		}
	case rudp.EventData:
		msg, err := protocol.Unmarshal(event.Payload)
		if err != nil {
			s.fail(fmt.Errorf("could not decode message from host: %w", err))
			return
		}
		s.handleClientMessage(msg)
	case rudp.EventDiscoveryRequest, rudp.EventDiscoveryResponse:
	default:
		debug.Assertf(false, "unhandled transport event: %d", event.Type)
	}
}

// handleHostLost ends the session for a client whose host went away.
func (s *Session) handleHostLost(reason string) {
	if !s.joined {
		// waitJoined reports the failure
		return
	}

	s.logger.Warn().
		Str("reason", reason).
		Msg("lost connection to host")
	if s.state < StateEnded {
		s.enter(StateEnded)
	}
	if s.state != StateClosed {
		s.enter(StateClosed)
	}
	if err := s.teardown(); err != nil {
		s.logger.Warn().Msgf("could not tear down session: %v", err)
	}
}

func (s *Session) handleClientMessage(msg protocol.Message) {
	// the host's own client shares the host's roster and state; it only
	// takes part in command traffic.
	switch m := msg.(type) {
	case *protocol.PlayersList:
		if !s.isHost {
			s.handlePlayersList(m)
		}
		s.joined = true
	case *protocol.NewPlayers:
		if !s.isHost {
			s.handleNewPlayers(m)
		}
	case *protocol.DisconnectedPlayers:
		if !s.isHost {
			s.handleDisconnectedPlayers(m)
		}
	case *protocol.SessionStateChanged:
		if !s.isHost {
			s.handleSessionStateChanged(m)
		}
	case *protocol.Commands:
		for _, id := range m.IDs {
			s.commands.Expect(id)
		}
	case *protocol.SceneEntities:
		for _, id := range m.IDs {
			s.entities.Expect(id)
		}
	case *protocol.ExecuteCommand:
		if _, err := s.commands.Receive(m); err != nil {
			s.fail(fmt.Errorf("could not apply command %d: %w", m.CommandID, err))
		}
	default:
		s.fail(fmt.Errorf("unexpected %s from host", msg.Kind()))
	}
}

func (s *Session) handlePlayersList(m *protocol.PlayersList) {
	for _, e := range m.Players {
		if p, ok := s.roster.JoinLocal(e.ID, e.IsHost); ok {
			s.playerJoined(p)
			continue
		}

		// players local to the host live behind the host connection
		var addr *netip.AddrPort
		if !e.IsLocal && e.Address.IsValid() {
			addr = ptr.To(e.Address)
		}
		if p, ok := s.roster.RecordRemoteJoin(e.ID, e.Name, e.IsHost, e.IsLocal, addr); ok {
			s.playerJoined(p)
		}
	}
}

func (s *Session) handleNewPlayers(m *protocol.NewPlayers) {
	onServer := !m.SenderAddress.IsValid()
	for _, info := range m.Players {
		if p, ok := s.roster.JoinLocal(info.ID, false); ok {
			s.playerJoined(p)
			continue
		}
		if p, ok := s.roster.RecordRemoteJoin(info.ID, info.Name, false, onServer, ptr.To(m.SenderAddress)); ok {
			s.playerJoined(p)
		}
	}
}

func (s *Session) handleDisconnectedPlayers(m *protocol.DisconnectedPlayers) {
	for _, id := range m.IDs {
		if p, ok := s.roster.RecordDeparture(id); ok {
			s.playerLeft(p)
		}
	}
}

func (s *Session) handleSessionStateChanged(m *protocol.SessionStateChanged) {
	next := State(m.State)
	if next >= stateMax {
		s.fail(fmt.Errorf("unknown session state %d", m.State))
		return
	}
	if next == s.state {
		return
	}

	s.enter(next)
	if next == StateStarting {
		s.syncSent = false
	}
	if next == StateClosed {
		if err := s.teardown(); err != nil {
			s.logger.Warn().Msgf("could not tear down session: %v", err)
		}
	}
}
