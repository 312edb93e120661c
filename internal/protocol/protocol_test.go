package protocol_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/blukai/lanparty/internal/codec"
	"github.com/blukai/lanparty/internal/protocol"
	"github.com/matryer/is"
)

func TestKindIsFirstByte(t *testing.T) {
	is := is.New(t)

	data := protocol.Marshal(&protocol.SessionStateChanged{State: 2})
	is.Equal(data, []byte{byte(protocol.KindSendSessionStateChangedToClients), 2})

	data = protocol.Marshal(&protocol.SynchronizationDone{})
	is.Equal(data, []byte{byte(protocol.KindSendSynchronizationDoneToServer)})
}

func TestMessageEncoding(t *testing.T) {
	is := is.New(t)

	addr := netip.MustParseAddrPort("192.168.1.20:5000")

	testCases := []protocol.Message{
		&protocol.LocalPlayers{Players: []protocol.PlayerInfo{{ID: "abc", Name: "Alice"}}},
		&protocol.NewPlayers{
			SenderAddress: addr,
			Players:       []protocol.PlayerInfo{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		},
		&protocol.DisconnectedPlayers{IDs: []string{"a", "b"}},
		&protocol.PlayersList{Players: []protocol.PlayerEntry{
			{ID: "h", Name: "Host", IsHost: true, IsLocal: true},
			{ID: "abc", Name: "Alice", Address: addr},
		}},
		&protocol.SessionStateChanged{State: 3},
		&protocol.Commands{IDs: []uint16{1, 2, 65535}},
		&protocol.SceneEntities{IDs: []uint32{1, 300, 1 << 31}},
		&protocol.SynchronizationDone{},
		&protocol.ExecuteCommand{CommandID: 7},
		&protocol.ExecuteCommand{CommandID: 7, Data: []byte{0, 0, 0, 42}},
		&protocol.ExecuteCommand{OnClients: true, CommandID: 9},
		&protocol.ExecuteCommand{OnClients: true, CommandID: 9, Data: []byte{1}},
	}

	for _, tc := range testCases {
		decoded, err := protocol.Unmarshal(protocol.Marshal(tc))
		is.NoErr(err)
		is.Equal(decoded.Kind(), tc.Kind())

		// re-encoding the decoded message yields identical bytes
		is.Equal(protocol.Marshal(decoded), protocol.Marshal(tc))
	}
}

func TestExecuteCommandKinds(t *testing.T) {
	is := is.New(t)

	is.Equal((&protocol.ExecuteCommand{}).Kind(), protocol.KindExecuteCommandOnServerNoDataExchanged)
	is.Equal((&protocol.ExecuteCommand{Data: []byte{1}}).Kind(), protocol.KindExecuteCommandOnServerDataExchanged)
	is.Equal((&protocol.ExecuteCommand{OnClients: true}).Kind(), protocol.KindExecuteServerCommandOnClientsNoDataExchanged)
	is.Equal((&protocol.ExecuteCommand{OnClients: true, Data: []byte{1}}).Kind(), protocol.KindExecuteServerCommandOnClientsDataExchanged)
}

func TestExecuteCommandPayloadNeedsDeclaredKind(t *testing.T) {
	is := is.New(t)

	value, err := codec.Marshal(codec.KindVector3, codec.Vector3{X: 1, Y: 2, Z: 3})
	is.NoErr(err)

	decoded, err := protocol.Unmarshal(protocol.Marshal(&protocol.ExecuteCommand{CommandID: 4, Data: value}))
	is.NoErr(err)

	exec := decoded.(*protocol.ExecuteCommand)
	is.Equal(exec.CommandID, uint16(4))

	v, err := codec.Unmarshal(exec.Data, codec.KindVector3)
	is.NoErr(err)
	is.Equal(v, codec.Vector3{X: 1, Y: 2, Z: 3})
}

func TestUnmarshalErrors(t *testing.T) {
	is := is.New(t)

	_, err := protocol.Unmarshal(nil)
	is.True(errors.Is(err, protocol.ErrEmptyMessage))

	_, err = protocol.Unmarshal([]byte{0})
	is.True(errors.Is(err, protocol.ErrUnknownKind))

	_, err = protocol.Unmarshal([]byte{200, 1, 2})
	is.True(errors.Is(err, protocol.ErrUnknownKind))

	// data variant without a value
	_, err = protocol.Unmarshal([]byte{byte(protocol.KindExecuteCommandOnServerDataExchanged), 0, 1})
	is.True(errors.Is(err, codec.ErrMissingValue))

	// count larger than the payload
	_, err = protocol.Unmarshal([]byte{byte(protocol.KindSendDisconnectedPlayersToClients), 100, 1, 'a'})
	is.True(errors.Is(err, codec.ErrShortBuffer))
}

func TestDiscoveryResponseEncoding(t *testing.T) {
	is := is.New(t)

	original := protocol.DiscoveryResponse{
		SessionType:      2,
		PlayerCount:      1,
		OpenPrivateSlots: 0,
		OpenPublicSlots:  3,
		Properties:       []int32{7, -1},
	}
	data, err := original.MarshalBinary()
	is.NoErr(err)

	decoded := protocol.DiscoveryResponse{}
	err = decoded.UnmarshalBinary(data)
	is.NoErr(err)
	is.Equal(decoded, original)
}

func TestAppFingerprint(t *testing.T) {
	is := is.New(t)

	is.Equal(protocol.AppFingerprint("lanparty"), protocol.AppFingerprint("lanparty"))
	is.True(protocol.AppFingerprint("lanparty") != protocol.AppFingerprint("other"))
}
