// Package protocol defines the application messages exchanged between a host
// and its clients. Every datagram payload starts with a one byte Kind followed
// by the kind specific fields.
package protocol

import (
	"errors"
	"fmt"

	"github.com/blukai/lanparty/internal/codec"
)

var (
	ErrUnknownKind  = errors.New("unknown message kind")
	ErrEmptyMessage = errors.New("empty message")
)

type Kind uint8

const (
	_ Kind = iota
	KindSendLocalPlayersToServer
	KindSendNewPlayersToClients
	KindSendDisconnectedPlayersToClients
	KindSendPlayersListToJustConnectedClient
	KindSendSessionStateChangedToClients
	KindSendCommandsToClients
	KindSendSceneEntitiesToClients
	KindSendSynchronizationDoneToServer
	KindExecuteCommandOnServerDataExchanged
	KindExecuteCommandOnServerNoDataExchanged
	KindExecuteServerCommandOnClientsDataExchanged
	KindExecuteServerCommandOnClientsNoDataExchanged

	kindMax
)

var kindNames = [...]string{
	KindSendLocalPlayersToServer:                     "SendLocalPlayersToServer",
	KindSendNewPlayersToClients:                      "SendNewPlayersToClients",
	KindSendDisconnectedPlayersToClients:             "SendDisconnectedPlayersToClients",
	KindSendPlayersListToJustConnectedClient:         "SendPlayersListToJustConnectedClient",
	KindSendSessionStateChangedToClients:             "SendSessionStateChangedToClients",
	KindSendCommandsToClients:                        "SendCommandsToClients",
	KindSendSceneEntitiesToClients:                   "SendSceneEntitiesToClients",
	KindSendSynchronizationDoneToServer:              "SendSynchronizationDoneToServer",
	KindExecuteCommandOnServerDataExchanged:          "ExecuteCommandOnServerDataExchanged",
	KindExecuteCommandOnServerNoDataExchanged:        "ExecuteCommandOnServerNoDataExchanged",
	KindExecuteServerCommandOnClientsDataExchanged:   "ExecuteServerCommandOnClientsDataExchanged",
	KindExecuteServerCommandOnClientsNoDataExchanged: "ExecuteServerCommandOnClientsNoDataExchanged",
}

func (k Kind) String() string {
	if k > 0 && k < kindMax {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Message is one application message.
type Message interface {
	Kind() Kind

	encodeBody(w *codec.Writer)
	decodeBody(r *codec.Reader) error
}

// Marshal encodes m prefixed by its kind.
func Marshal(m Message) []byte {
	w := codec.NewWriter()
	w.WriteUint8(uint8(m.Kind()))
	m.encodeBody(w)
	return w.Bytes()
}

// Unmarshal decodes a kind-prefixed message. Unknown kinds fail with
// ErrUnknownKind.
func Unmarshal(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	kind := Kind(data[0])
	var m Message
	switch kind {
	case KindSendLocalPlayersToServer:
		m = &LocalPlayers{}
	case KindSendNewPlayersToClients:
		m = &NewPlayers{}
	case KindSendDisconnectedPlayersToClients:
		m = &DisconnectedPlayers{}
	case KindSendPlayersListToJustConnectedClient:
		m = &PlayersList{}
	case KindSendSessionStateChangedToClients:
		m = &SessionStateChanged{}
	case KindSendCommandsToClients:
		m = &Commands{}
	case KindSendSceneEntitiesToClients:
		m = &SceneEntities{}
	case KindSendSynchronizationDoneToServer:
		m = &SynchronizationDone{}
	case KindExecuteCommandOnServerDataExchanged:
		m = &ExecuteCommand{hasData: true}
	case KindExecuteCommandOnServerNoDataExchanged:
		m = &ExecuteCommand{}
	case KindExecuteServerCommandOnClientsDataExchanged:
		m = &ExecuteCommand{OnClients: true, hasData: true}
	case KindExecuteServerCommandOnClientsNoDataExchanged:
		m = &ExecuteCommand{OnClients: true}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, data[0])
	}

	r := codec.NewReader(data[1:])
	if err := m.decodeBody(r); err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", kind, err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("could not decode %s: %d trailing bytes", kind, r.Remaining())
	}
	return m, nil
}
