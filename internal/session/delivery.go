package session

import (
	"github.com/blukai/lanparty/internal/command"
	"github.com/blukai/lanparty/internal/rudp"
)

const (
	// roster, state and synchronization traffic, and in order commands
	channelControl rudp.Channel = iota
	channelCommands
	channelChat
)

const controlMethod = rudp.ReliableOrdered

// delivery maps a command's transfer option to the way it travels.
func delivery(t command.TransferOption) (rudp.Method, rudp.Channel) {
	switch t {
	case command.TransferNone:
		return rudp.Unreliable, channelCommands
	case command.TransferReliable:
		return rudp.ReliableUnordered, channelCommands
	case command.TransferInOrder:
		return rudp.ReliableSequenced, channelCommands
	case command.TransferChat:
		return rudp.Unreliable, channelChat
	default:
		return controlMethod, channelControl
	}
}
