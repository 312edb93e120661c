package protocol

import (
	"fmt"
	"net/netip"

	"github.com/blukai/lanparty/internal/codec"
)

// PlayerInfo is how a player is announced: identity and display name.
type PlayerInfo struct {
	ID   string
	Name string
}

// PlayerEntry is one row of the roster snapshot sent to a just connected
// client. Address is only present for players that are not local to the
// host.
type PlayerEntry struct {
	ID      string
	Name    string
	IsHost  bool
	IsLocal bool
	Address netip.AddrPort
}

// LocalPlayers is sent by a client to announce its local players.
//
//	count, {uniqueId, displayName}...
type LocalPlayers struct {
	Players []PlayerInfo
}

func (*LocalPlayers) Kind() Kind { return KindSendLocalPlayersToServer }

func (m *LocalPlayers) encodeBody(w *codec.Writer) {
	writePlayerInfos(w, m.Players)
}

func (m *LocalPlayers) decodeBody(r *codec.Reader) error {
	players, err := readPlayerInfos(r)
	m.Players = players
	return err
}

// NewPlayers tells existing clients about players that joined through the
// connection at SenderAddress.
//
//	count, senderAddress, {uniqueId, displayName}...
type NewPlayers struct {
	SenderAddress netip.AddrPort
	Players       []PlayerInfo
}

func (*NewPlayers) Kind() Kind { return KindSendNewPlayersToClients }

func (m *NewPlayers) encodeBody(w *codec.Writer) {
	w.WriteUvarint(uint64(len(m.Players)))
	writeAddr(w, m.SenderAddress)
	for _, p := range m.Players {
		w.WriteString(p.ID)
		w.WriteString(p.Name)
	}
}

func (m *NewPlayers) decodeBody(r *codec.Reader) error {
	n, err := r.ReadCount(2)
	if err != nil {
		return err
	}
	if m.SenderAddress, err = readAddr(r); err != nil {
		return err
	}
	m.Players = make([]PlayerInfo, n)
	for i := range m.Players {
		if m.Players[i], err = readPlayerInfo(r); err != nil {
			return err
		}
	}
	return nil
}

// DisconnectedPlayers lists the ids of players that left.
//
//	count, {uniqueId}...
type DisconnectedPlayers struct {
	IDs []string
}

func (*DisconnectedPlayers) Kind() Kind { return KindSendDisconnectedPlayersToClients }

func (m *DisconnectedPlayers) encodeBody(w *codec.Writer) {
	w.WriteUvarint(uint64(len(m.IDs)))
	for _, id := range m.IDs {
		w.WriteString(id)
	}
}

func (m *DisconnectedPlayers) decodeBody(r *codec.Reader) error {
	n, err := r.ReadCount(1)
	if err != nil {
		return err
	}
	m.IDs = make([]string, n)
	for i := range m.IDs {
		if m.IDs[i], err = r.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

// PlayersList is the full roster as seen by the host.
//
//	count, {uniqueId, displayName, isHost, isLocal, [address if !isLocal]}...
type PlayersList struct {
	Players []PlayerEntry
}

func (*PlayersList) Kind() Kind { return KindSendPlayersListToJustConnectedClient }

func (m *PlayersList) encodeBody(w *codec.Writer) {
	w.WriteUvarint(uint64(len(m.Players)))
	for _, p := range m.Players {
		w.WriteString(p.ID)
		w.WriteString(p.Name)
		w.WriteBool(p.IsHost)
		w.WriteBool(p.IsLocal)
		if !p.IsLocal {
			writeAddr(w, p.Address)
		}
	}
}

func (m *PlayersList) decodeBody(r *codec.Reader) error {
	n, err := r.ReadCount(4)
	if err != nil {
		return err
	}
	m.Players = make([]PlayerEntry, n)
	for i := range m.Players {
		p := &m.Players[i]
		if p.ID, err = r.ReadString(); err != nil {
			return err
		}
		if p.Name, err = r.ReadString(); err != nil {
			return err
		}
		if p.IsHost, err = r.ReadBool(); err != nil {
			return err
		}
		if p.IsLocal, err = r.ReadBool(); err != nil {
			return err
		}
		if !p.IsLocal {
			if p.Address, err = readAddr(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// SessionStateChanged carries the new session state as a single byte.
type SessionStateChanged struct {
	State uint8
}

func (*SessionStateChanged) Kind() Kind { return KindSendSessionStateChangedToClients }

func (m *SessionStateChanged) encodeBody(w *codec.Writer) {
	w.WriteUint8(m.State)
}

func (m *SessionStateChanged) decodeBody(r *codec.Reader) error {
	state, err := r.ReadUint8()
	m.State = state
	return err
}

// Commands announces host assigned command ids in assignment order.
//
//	count, {commandId:uint16}...
type Commands struct {
	IDs []uint16
}

func (*Commands) Kind() Kind { return KindSendCommandsToClients }

func (m *Commands) encodeBody(w *codec.Writer) {
	w.WriteUvarint(uint64(len(m.IDs)))
	for _, id := range m.IDs {
		w.WriteUint16(id)
	}
}

func (m *Commands) decodeBody(r *codec.Reader) error {
	n, err := r.ReadCount(2)
	if err != nil {
		return err
	}
	m.IDs = make([]uint16, n)
	for i := range m.IDs {
		if m.IDs[i], err = r.ReadUint16(); err != nil {
			return err
		}
	}
	return nil
}

// SceneEntities announces host assigned scene entity ids in assignment
// order.
//
//	count, {entityId}...
type SceneEntities struct {
	IDs []uint32
}

func (*SceneEntities) Kind() Kind { return KindSendSceneEntitiesToClients }

func (m *SceneEntities) encodeBody(w *codec.Writer) {
	w.WriteUvarint(uint64(len(m.IDs)))
	for _, id := range m.IDs {
		w.WriteUvarint(uint64(id))
	}
}

func (m *SceneEntities) decodeBody(r *codec.Reader) error {
	n, err := r.ReadCount(1)
	if err != nil {
		return err
	}
	m.IDs = make([]uint32, n)
	for i := range m.IDs {
		id, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		if id > 1<<32-1 {
			return fmt.Errorf("scene entity id %d out of range", id)
		}
		m.IDs[i] = uint32(id)
	}
	return nil
}

// SynchronizationDone is sent by a client once its local setup for a
// starting session is complete. It has no fields.
type SynchronizationDone struct{}

func (*SynchronizationDone) Kind() Kind { return KindSendSynchronizationDoneToServer }

func (*SynchronizationDone) encodeBody(*codec.Writer) {}

func (*SynchronizationDone) decodeBody(*codec.Reader) error { return nil }

// ExecuteCommand is both the client to host request and the host to clients
// broadcast. Data holds the encoded value; it is nil for the no data
// variants. Decoding Data requires the command's declared kind, which the
// message does not carry.
//
//	commandId:uint16, [value]
type ExecuteCommand struct {
	OnClients bool
	CommandID uint16
	Data      []byte

	hasData bool
}

func (m *ExecuteCommand) Kind() Kind {
	switch {
	case m.OnClients && m.Data != nil:
		return KindExecuteServerCommandOnClientsDataExchanged
	case m.OnClients:
		return KindExecuteServerCommandOnClientsNoDataExchanged
	case m.Data != nil:
		return KindExecuteCommandOnServerDataExchanged
	default:
		return KindExecuteCommandOnServerNoDataExchanged
	}
}

func (m *ExecuteCommand) encodeBody(w *codec.Writer) {
	w.WriteUint16(m.CommandID)
	w.WriteRaw(m.Data)
}

func (m *ExecuteCommand) decodeBody(r *codec.Reader) error {
	id, err := r.ReadUint16()
	if err != nil {
		return err
	}
	m.CommandID = id
	if !m.hasData {
		return nil
	}
	rest := r.Rest()
	if len(rest) == 0 {
		return fmt.Errorf("%w for command %d", codec.ErrMissingValue, id)
	}
	m.Data = append(make([]byte, 0, len(rest)), rest...)
	return nil
}

func writePlayerInfos(w *codec.Writer, players []PlayerInfo) {
	w.WriteUvarint(uint64(len(players)))
	for _, p := range players {
		w.WriteString(p.ID)
		w.WriteString(p.Name)
	}
}

func readPlayerInfos(r *codec.Reader) ([]PlayerInfo, error) {
	n, err := r.ReadCount(2)
	if err != nil {
		return nil, err
	}
	players := make([]PlayerInfo, n)
	for i := range players {
		if players[i], err = readPlayerInfo(r); err != nil {
			return nil, err
		}
	}
	return players, nil
}

func readPlayerInfo(r *codec.Reader) (PlayerInfo, error) {
	id, err := r.ReadString()
	if err != nil {
		return PlayerInfo{}, err
	}
	name, err := r.ReadString()
	if err != nil {
		return PlayerInfo{}, err
	}
	return PlayerInfo{ID: id, Name: name}, nil
}

// addresses travel as their "ip:port" text; an unset address is an empty
// string.
func writeAddr(w *codec.Writer, addr netip.AddrPort) {
	if !addr.IsValid() {
		w.WriteString("")
		return
	}
	w.WriteString(addr.String())
}

func readAddr(r *codec.Reader) (netip.AddrPort, error) {
	s, err := r.ReadString()
	if err != nil || s == "" {
		return netip.AddrPort{}, err
	}
	addr, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("could not parse address: %w", err)
	}
	return addr, nil
}
