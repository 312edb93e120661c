package session

import (
	"fmt"

	"github.com/blukai/lanparty/internal/roster"
)

type EventType uint8

const (
	EventPlayerJoined EventType = iota
	EventPlayerLeft
	EventStarting
	EventStarted
	EventEnded
	EventClosed
	// EventError reports a message that could not be handled. The
	// connection it came from stays up.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventPlayerJoined:
		return "player-joined"
	case EventPlayerLeft:
		return "player-left"
	case EventStarting:
		return "starting"
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event is a notification for the game. Player is set for join and leave
// events, Err for EventError.
type Event struct {
	Type   EventType
	Player *roster.Player
	State  State
	Err    error
}
