package roster

import (
	"fmt"

	"github.com/google/uuid"
)

type Origin uint8

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// Player is one participant. Its id never changes.
type Player struct {
	id     string
	name   string
	isHost bool
	origin Origin
}

// NewLocalPlayer creates a player for a locally identified input device.
func NewLocalPlayer(name string) *Player {
	return &Player{
		id:     uuid.NewString(),
		name:   name,
		origin: OriginLocal,
	}
}

// NewPlayer creates a local player with a known id, for identities that
// outlive a process.
func NewPlayer(id, name string) *Player {
	return &Player{
		id:     id,
		name:   name,
		origin: OriginLocal,
	}
}

func (p *Player) ID() string     { return p.id }
func (p *Player) Name() string   { return p.name }
func (p *Player) IsHost() bool   { return p.isHost }
func (p *Player) IsLocal() bool  { return p.origin == OriginLocal }
func (p *Player) Origin() Origin { return p.origin }

func (p *Player) String() string {
	return fmt.Sprintf("%s (%s)", p.name, p.id)
}
