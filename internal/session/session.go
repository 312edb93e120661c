// Package session implements a host authoritative multiplayer session.
//
// Every peer of a LAN session, the host included, runs a client connected to
// the host. The host additionally runs the server that accepts those
// connections, owns the roster, executes commands and drives the session
// state. Local sessions (single player and split screen) run the same state
// machine and commands without any transport.
//
// A Session is not safe for concurrent use. The game loop calls Update once
// per frame and reads events and rosters between calls.
package session

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/blukai/lanparty/internal/command"
	"github.com/blukai/lanparty/internal/logging"
	"github.com/blukai/lanparty/internal/protocol"
	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/rudp"
	"github.com/blukai/lanparty/internal/scene"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidState  = errors.New("invalid session state")
	ErrNotHost       = errors.New("only the host can do that")
	ErrClosed        = errors.New("session closed")
	ErrUnsupported   = errors.New("unsupported session type")
	ErrRefused       = errors.New("join refused")
)

const (
	reasonSessionFull     = "session full"
	reasonSessionNotReady = "session not ready"
	reasonLeft            = "left session"
)

type Session struct {
	logger *log.Logger
	cfg    Config
	isHost bool
	state  State

	roster   *roster.Roster
	commands *command.Registry
	entities *scene.Table

	// server accepts client connections; host only.
	server *rudp.Peer
	// selfConn is the server side of the host's own client connection.
	selfConn *rudp.Conn
	// syncing holds the ids of players that have not reported
	// synchronization done; host only.
	syncing map[string]struct{}

	client   *rudp.Peer
	hostConn *rudp.Conn
	// joined is set once the host listed the roster to this peer.
	joined   bool
	syncSent bool

	events []Event

	statsAt        time.Time
	lastStats      rudp.Stats
	sentPerSec     uint64
	receivedPerSec uint64

	closed bool
}

func newSession(cfg Config, isHost bool, players []*roster.Player, logger *log.Logger) *Session {
	return &Session{
		logger: logging.OrSilent(logger),
		cfg:    cfg,
		isHost: isHost,
		state:  StateLobby,

		roster:   roster.New(players),
		commands: command.NewRegistry(),
		entities: scene.NewTable(),

		statsAt: time.Now(),
	}
}

func (s *Session) Type() Type          { return s.cfg.Type }
func (s *Session) State() State        { return s.state }
func (s *Session) IsHost() bool        { return s.isHost }
func (s *Session) MaxPlayers() int     { return s.cfg.MaxPlayers }
func (s *Session) PrivateSlots() int   { return s.cfg.PrivateSlots }
func (s *Session) Properties() []int32 { return s.cfg.Properties }

func (s *Session) AllPlayers() []*roster.Player    { return s.roster.All() }
func (s *Session) LocalPlayers() []*roster.Player  { return s.roster.Local() }
func (s *Session) RemotePlayers() []*roster.Player { return s.roster.Remote() }

// Addr is the address the host listens on. It is invalid for clients and
// local sessions.
func (s *Session) Addr() netip.AddrPort {
	if s.server == nil {
		return netip.AddrPort{}
	}
	addr := s.server.Addr().AddrPort()
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// BytesSentPerSecond and BytesReceivedPerSecond are sampled once a second
// over both the server and the client socket.
func (s *Session) BytesSentPerSecond() uint64     { return s.sentPerSec }
func (s *Session) BytesReceivedPerSecond() uint64 { return s.receivedPerSec }

// Unacked is the number of reliable messages this peer sent that are not
// acknowledged yet.
func (s *Session) Unacked() int {
	if s.closed || s.client == nil {
		return 0
	}
	n := s.hostConn.Unacked()
	if s.server != nil {
		for _, c := range s.server.Conns() {
			n += c.Unacked()
		}
	}
	return n
}

// PollEvents returns the events raised since the previous call.
func (s *Session) PollEvents() []Event {
	events := s.events
	s.events = nil
	return events
}

func (s *Session) emit(event Event) {
	s.events = append(s.events, event)
}

func (s *Session) playerJoined(p *roster.Player) {
	s.logger.Info().
		Str("player", p.String()).
		Str("origin", p.Origin().String()).
		Bool("host", p.IsHost()).
		Msg("player joined")
	s.emit(Event{Type: EventPlayerJoined, Player: p, State: s.state})
}

func (s *Session) playerLeft(p *roster.Player) {
	s.logger.Info().
		Str("player", p.String()).
		Msg("player left")
	s.emit(Event{Type: EventPlayerLeft, Player: p, State: s.state})
}

// fail reports an error that is fatal for one message only.
func (s *Session) fail(err error) {
	s.logger.Error().Msgf("%v", err)
	s.emit(Event{Type: EventError, Err: err, State: s.state})
}

// enter moves to next and raises the matching notification.
func (s *Session) enter(next State) {
	s.logger.Info().
		Str("from", s.state.String()).
		Str("to", next.String()).
		Msg("session state changed")

	s.state = next
	if typ, ok := next.event(); ok {
		s.emit(Event{Type: typ, State: next})
	}
}

// Update flushes outgoing traffic, handles everything that arrived since the
// previous call and samples bandwidth.
func (s *Session) Update() {
	if s.closed || s.cfg.Type.Local() {
		return
	}

	if s.server != nil {
		s.server.Flush()
	}
	s.client.Flush()

	if s.server != nil {
		for _, event := range s.server.Drain() {
			s.handleServerEvent(event)
			if s.closed {
				return
			}
		}
	}
	for _, event := range s.client.Drain() {
		s.handleClientEvent(event)
		if s.closed {
			return
		}
	}

	s.sampleBandwidth(time.Now())
}

func (s *Session) sampleBandwidth(now time.Time) {
	if now.Sub(s.statsAt) < time.Second {
		return
	}

	cur := s.client.Stats()
	if s.server != nil {
		ss := s.server.Stats()
		cur.BytesSent += ss.BytesSent
		cur.BytesReceived += ss.BytesReceived
	}

	s.sentPerSec = cur.BytesSent - s.lastStats.BytesSent
	s.receivedPerSec = cur.BytesReceived - s.lastStats.BytesReceived
	s.lastStats = cur
	s.statsAt = now
}

// RegisterCommand queues c for synchronization. Every peer must register
// its commands in the same order.
func (s *Session) RegisterCommand(c *command.Command) {
	s.commands.Register(c)
}

// RegisterEntity queues e for synchronization. Every peer must register its
// entities in the same order.
func (s *Session) RegisterEntity(e *scene.Entity) {
	s.entities.Register(e)
}

// SynchronizeCommandOnClients assigns ids to commands and tells clients to
// bind them. Commands must be synchronized in the order they were
// registered. Host only.
func (s *Session) SynchronizeCommandOnClients(commands ...*command.Command) error {
	if err := s.checkHost(); err != nil {
		return err
	}

	msg := &protocol.Commands{IDs: make([]uint16, 0, len(commands))}
	for _, c := range commands {
		id, err := s.commands.Assign(c)
		if err != nil {
			return err
		}
		msg.IDs = append(msg.IDs, id)
		s.logger.Debug().
			Str("command", c.String()).
			Msg("synchronizing command")
	}

	if s.cfg.Type.Local() {
		return nil
	}
	return s.broadcast(msg, controlMethod, channelControl, s.selfConn)
}

// SynchronizeSceneEntitiesOnClients assigns ids to entities, in registration
// order, and tells clients to bind them. Host only.
func (s *Session) SynchronizeSceneEntitiesOnClients(entities ...*scene.Entity) error {
	if err := s.checkHost(); err != nil {
		return err
	}

	msg := &protocol.SceneEntities{IDs: make([]uint32, 0, len(entities))}
	for _, e := range entities {
		id, err := s.entities.Assign(e)
		if err != nil {
			return err
		}
		msg.IDs = append(msg.IDs, id)
	}

	if s.cfg.Type.Local() {
		return nil
	}
	return s.broadcast(msg, controlMethod, channelControl, s.selfConn)
}

// ExecuteCommandOnServer asks the host to execute c with its current value.
// The result is applied on every client, this one included, when it
// arrives.
func (s *Session) ExecuteCommandOnServer(c *command.Command) error {
	if s.closed {
		return ErrClosed
	}
	if s.cfg.Type.Local() {
		s.commands.ExecuteLocally(c)
		return nil
	}

	msg, err := s.commands.Request(c)
	if err != nil {
		return err
	}
	method, channel := delivery(c.Transfer)
	if err := s.hostConn.Send(protocol.Marshal(msg), method, channel); err != nil {
		return fmt.Errorf("could not send command %s: %w", c, err)
	}
	return nil
}

// StartSession moves from lobby to starting. The session plays once every
// remote player reported SynchronizationDone; with no remote players it
// plays right away. Host only.
func (s *Session) StartSession() error {
	if err := s.checkHost(); err != nil {
		return err
	}
	if s.state != StateLobby {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, s.state)
	}

	// the host's own players are not waited for
	remote := s.roster.Remote()
	s.syncing = make(map[string]struct{}, len(remote))
	for _, p := range remote {
		s.syncing[p.ID()] = struct{}{}
	}

	if err := s.transition(StateStarting); err != nil {
		return err
	}
	s.checkSyncGate()
	return nil
}

// SynchronizationDone reports that this client finished its local setup
// after the session started. It is a no-op on the host.
func (s *Session) SynchronizationDone() error {
	if s.closed {
		return ErrClosed
	}
	if s.isHost {
		return nil
	}
	if s.state != StateStarting {
		return fmt.Errorf("%w: nothing to synchronize in %s", ErrInvalidState, s.state)
	}
	if s.syncSent {
		return nil
	}

	msg := protocol.Marshal(&protocol.SynchronizationDone{})
	if err := s.hostConn.Send(msg, controlMethod, channelControl); err != nil {
		return fmt.Errorf("could not report synchronization: %w", err)
	}
	s.syncSent = true
	return nil
}

// EndSession moves from playing to ended. Host only.
func (s *Session) EndSession() error {
	if err := s.checkHost(); err != nil {
		return err
	}
	if s.state != StatePlaying {
		return fmt.Errorf("%w: cannot end from %s", ErrInvalidState, s.state)
	}
	return s.transition(StateEnded)
}

// Close ends the session for this peer. A host tells its clients the session
// is closed; a client leaves. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	if s.isHost && s.state != StateClosed {
		if err := s.transition(StateClosed); err != nil {
			s.logger.Warn().Msgf("could not announce close: %v", err)
		}
		if s.server != nil {
			s.server.Flush()
		}
	} else if s.state != StateClosed {
		s.enter(StateClosed)
	}

	return s.teardown()
}

func (s *Session) teardown() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs error
	if s.client != nil {
		if s.hostConn != nil {
			s.hostConn.Disconnect(reasonLeft)
		}
		if err := s.client.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not close client: %w", err))
		}
	}
	if s.server != nil {
		if err := s.server.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not close server: %w", err))
		}
	}
	s.roster.Clear()

	s.logger.Info().Msg("session closed")
	return errs
}

func (s *Session) checkHost() error {
	if s.closed {
		return ErrClosed
	}
	if !s.isHost {
		return ErrNotHost
	}
	return nil
}
