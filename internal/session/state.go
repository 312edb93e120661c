package session

import "fmt"

type State uint8

const (
	StateLobby State = iota
	StateStarting
	StatePlaying
	StateEnded
	StateClosed

	stateMax
)

var stateNames = [...]string{
	StateLobby:    "lobby",
	StateStarting: "starting",
	StatePlaying:  "playing",
	StateEnded:    "ended",
	StateClosed:   "closed",
}

func (s State) String() string {
	if s < stateMax {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// event returns the notification raised on entering s.
func (s State) event() (EventType, bool) {
	switch s {
	case StateStarting:
		return EventStarting, true
	case StatePlaying:
		return EventStarted, true
	case StateEnded:
		return EventEnded, true
	case StateClosed:
		return EventClosed, true
	default:
		return 0, false
	}
}
