// Package roster tracks who is in a session: all players in join order,
// partitioned into players local to this peer and remote ones, plus the
// address each remote player is reachable through.
//
// A Roster is not safe for concurrent use.
package roster

import (
	"net/netip"
	"slices"

	"github.com/blukai/lanparty/internal/protocol"
)

type Roster struct {
	// players this peer brings to a session
	identities []*Player

	all    []*Player
	local  []*Player
	remote []*Player

	addresses map[string]netip.AddrPort
	hostAddr  netip.AddrPort
	hasHost   bool
}

func New(identities []*Player) *Roster {
	return &Roster{
		identities: identities,
		addresses:  make(map[string]netip.AddrPort),
	}
}

// Identities are the players this peer announces when it joins.
func (r *Roster) Identities() []*Player { return slices.Clone(r.identities) }

func (r *Roster) All() []*Player    { return slices.Clone(r.all) }
func (r *Roster) Local() []*Player  { return slices.Clone(r.local) }
func (r *Roster) Remote() []*Player { return slices.Clone(r.remote) }
func (r *Roster) Len() int          { return len(r.all) }

// SetHostAddress records the address of the connection to the host. Remote
// players that live on the host are reachable through it.
func (r *Roster) SetHostAddress(addr netip.AddrPort) {
	r.hostAddr = addr
}

func (r *Roster) Find(id string) (*Player, bool) {
	i := slices.IndexFunc(r.all, func(p *Player) bool { return p.id == id })
	if i < 0 {
		return nil, false
	}
	return r.all[i], true
}

func (r *Roster) Contains(id string) bool {
	_, ok := r.Find(id)
	return ok
}

// Address returns the address a remote player is reachable through.
func (r *Roster) Address(id string) (netip.AddrPort, bool) {
	addr, ok := r.addresses[id]
	return addr, ok
}

// Host returns the player flagged as host, if any.
func (r *Roster) Host() (*Player, bool) {
	i := slices.IndexFunc(r.all, func(p *Player) bool { return p.isHost })
	if i < 0 {
		return nil, false
	}
	return r.all[i], true
}

// PlayersAt returns the remote players reachable through addr.
func (r *Roster) PlayersAt(addr netip.AddrPort) []*Player {
	var players []*Player
	for _, p := range r.remote {
		if r.addresses[p.id] == addr {
			players = append(players, p)
		}
	}
	return players
}

func (r *Roster) identity(id string) (*Player, bool) {
	i := slices.IndexFunc(r.identities, func(p *Player) bool { return p.id == id })
	if i < 0 {
		return nil, false
	}
	return r.identities[i], true
}

// Owns reports whether any of candidates is one of this peer's identities.
func (r *Roster) Owns(candidates []protocol.PlayerInfo) bool {
	for _, c := range candidates {
		if _, ok := r.identity(c.ID); ok {
			return true
		}
	}
	return false
}

// AddLocalPlayers merges the players announced through the connection at
// from. Host only. Candidates that are this peer's own identities join as
// local players, the very first of them as host; the rest join as remote
// players reachable through from. Every candidate is added at most once.
// own reports whether the announcement came from this peer itself.
func (r *Roster) AddLocalPlayers(candidates []protocol.PlayerInfo, from netip.AddrPort) (added []*Player, own bool) {
	for _, c := range candidates {
		if p, ok := r.identity(c.ID); ok {
			own = true
			if r.Contains(p.id) {
				continue
			}
			if !r.hasHost {
				p.isHost = true
				r.hasHost = true
			}
			r.addLocal(p)
			added = append(added, p)
			continue
		}

		if p, ok := r.RecordRemoteJoin(c.ID, c.Name, false, false, &from); ok {
			added = append(added, p)
		}
	}
	return added, own
}

// JoinLocal adds one of this peer's identities as it is listed by the host.
func (r *Roster) JoinLocal(id string, isHost bool) (*Player, bool) {
	p, ok := r.identity(id)
	if !ok || r.Contains(id) {
		return nil, false
	}
	if isHost {
		p.isHost = true
		r.hasHost = true
	}
	r.addLocal(p)
	return p, true
}

// RecordRemoteJoin adds a player announced by another peer. With isOnServer
// set the player lives on the host and is reachable through the host
// connection; otherwise address, if given, is where it is reachable.
func (r *Roster) RecordRemoteJoin(id, name string, isHost, isOnServer bool, address *netip.AddrPort) (*Player, bool) {
	if r.Contains(id) {
		return nil, false
	}

	p := &Player{
		id:     id,
		name:   name,
		origin: OriginRemote,
	}
	if isHost && !r.hasHost {
		p.isHost = true
		r.hasHost = true
	}

	switch {
	case isOnServer:
		r.addresses[id] = r.hostAddr
	case address != nil:
		r.addresses[id] = *address
	}

	r.remote = append(r.remote, p)
	r.all = append(r.all, p)
	return p, true
}

// RecordDeparture removes the player with id from every list.
func (r *Roster) RecordDeparture(id string) (*Player, bool) {
	p, ok := r.Find(id)
	if !ok {
		return nil, false
	}

	match := func(p *Player) bool { return p.id == id }
	r.all = slices.DeleteFunc(r.all, match)
	r.local = slices.DeleteFunc(r.local, match)
	r.remote = slices.DeleteFunc(r.remote, match)
	delete(r.addresses, id)
	return p, true
}

// Entries is the roster as the host lists it to a just connected client.
func (r *Roster) Entries() []protocol.PlayerEntry {
	entries := make([]protocol.PlayerEntry, len(r.all))
	for i, p := range r.all {
		entries[i] = protocol.PlayerEntry{
			ID:      p.id,
			Name:    p.name,
			IsHost:  p.isHost,
			IsLocal: p.IsLocal(),
			Address: r.addresses[p.id],
		}
	}
	return entries
}

// Infos converts players to their announced form.
func Infos(players []*Player) []protocol.PlayerInfo {
	infos := make([]protocol.PlayerInfo, len(players))
	for i, p := range players {
		infos[i] = protocol.PlayerInfo{ID: p.id, Name: p.name}
	}
	return infos
}

// Clear empties the roster. Identities are kept.
func (r *Roster) Clear() {
	r.all = nil
	r.local = nil
	r.remote = nil
	r.hasHost = false
	clear(r.addresses)
	for _, p := range r.identities {
		p.isHost = false
	}
}

func (r *Roster) addLocal(p *Player) {
	r.local = append(r.local, p)
	r.all = append(r.all, p)
}
