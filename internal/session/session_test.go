package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blukai/lanparty/internal/codec"
	"github.com/blukai/lanparty/internal/command"
	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/scene"
	"github.com/blukai/lanparty/internal/session"
	"github.com/matryer/is"
)

func localSession(is *is.I, typ session.Type, players ...*roster.Player) *session.Session {
	s, err := session.Host(context.Background(), session.Config{
		Type:       typ,
		MaxPlayers: 4,
	}, players, nil)
	is.NoErr(err)
	return s
}

func eventTypes(events []session.Event) []session.EventType {
	types := make([]session.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestConfigValidate(t *testing.T) {
	is := is.New(t)

	cfg := session.Config{Type: session.TypeLAN, MaxPlayers: 4, MaxLocalPlayers: 4}
	is.NoErr(cfg.Validate())

	tests := []session.Config{
		{Type: session.TypeLAN, MaxPlayers: 0, MaxLocalPlayers: 1},
		{Type: session.TypeLAN, MaxPlayers: 32, MaxLocalPlayers: 1},
		{Type: session.TypeLAN, MaxPlayers: 4, MaxLocalPlayers: 5},
		{Type: session.TypeLAN, MaxPlayers: 4, MaxLocalPlayers: 1, PrivateSlots: 4},
		{Type: session.TypeLAN, MaxPlayers: 4, MaxLocalPlayers: 1, PrivateSlots: -1},
		{Type: session.TypeLAN, MaxPlayers: 4, MaxLocalPlayers: 1, Port: 70000},
	}
	for _, cfg := range tests {
		err := cfg.Validate()
		is.True(errors.Is(err, session.ErrInvalidConfig)) // every problem wraps ErrInvalidConfig
	}
}

func TestHostRejectsInvalidConfig(t *testing.T) {
	is := is.New(t)

	players := []*roster.Player{
		roster.NewLocalPlayer("1"), roster.NewLocalPlayer("2"), roster.NewLocalPlayer("3"),
		roster.NewLocalPlayer("4"), roster.NewLocalPlayer("5"),
	}
	_, err := session.Host(context.Background(), session.Config{
		Type:       session.TypeSplitScreen,
		MaxPlayers: 8,
	}, players, nil)
	is.True(errors.Is(err, session.ErrInvalidConfig))

	_, err = session.Host(context.Background(), session.Config{
		Type:       session.TypeSinglePlayer,
		MaxPlayers: 1,
	}, nil, nil)
	is.True(errors.Is(err, session.ErrInvalidConfig))

	_, err = session.Host(context.Background(), session.Config{
		Type:       session.TypeWAN,
		MaxPlayers: 4,
	}, players[:1], nil)
	is.True(errors.Is(err, session.ErrUnsupported))
}

func TestZeroPortMeansDefaultPort(t *testing.T) {
	is := is.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := session.Host(ctx, session.Config{
		Type:       session.TypeLAN,
		MaxPlayers: 2,
	}, []*roster.Player{roster.NewLocalPlayer("host")}, nil)
	is.NoErr(err)
	defer s.Close()

	// discovery broadcasts to the same port by default
	is.Equal(s.Addr().Port(), uint16(session.DefaultPort))
}

func TestLocalSessionRoster(t *testing.T) {
	is := is.New(t)

	p1, p2 := roster.NewLocalPlayer("p1"), roster.NewLocalPlayer("p2")
	s := localSession(is, session.TypeSplitScreen, p1, p2)
	defer s.Close()

	is.True(s.IsHost())
	is.Equal(s.State(), session.StateLobby)
	is.Equal(len(s.AllPlayers()), 2)
	is.Equal(len(s.LocalPlayers()), 2)
	is.Equal(len(s.RemotePlayers()), 0)
	is.True(p1.IsHost())
	is.True(!p2.IsHost())

	is.Equal(eventTypes(s.PollEvents()), []session.EventType{session.EventPlayerJoined, session.EventPlayerJoined})
	is.Equal(len(s.PollEvents()), 0)
}

func TestStateMachineLegality(t *testing.T) {
	is := is.New(t)

	s := localSession(is, session.TypeSinglePlayer, roster.NewLocalPlayer("solo"))
	s.PollEvents()

	err := s.EndSession()
	is.True(errors.Is(err, session.ErrInvalidState))
	is.Equal(s.State(), session.StateLobby)

	is.NoErr(s.StartSession())
	// nobody to wait for
	is.Equal(s.State(), session.StatePlaying)
	is.Equal(eventTypes(s.PollEvents()), []session.EventType{session.EventStarting, session.EventStarted})

	err = s.StartSession()
	is.True(errors.Is(err, session.ErrInvalidState))
	is.Equal(s.State(), session.StatePlaying)

	is.NoErr(s.EndSession())
	is.Equal(s.State(), session.StateEnded)

	err = s.EndSession()
	is.True(errors.Is(err, session.ErrInvalidState))
	err = s.StartSession()
	is.True(errors.Is(err, session.ErrInvalidState))
	is.Equal(s.State(), session.StateEnded)

	is.NoErr(s.Close())
	is.Equal(s.State(), session.StateClosed)
	is.NoErr(s.Close())

	err = s.StartSession()
	is.True(errors.Is(err, session.ErrClosed))
}

func TestLocalCommands(t *testing.T) {
	is := is.New(t)

	s := localSession(is, session.TypeSinglePlayer, roster.NewLocalPlayer("solo"))
	defer s.Close()

	var got codec.Value
	add := command.New("add", codec.KindInt32, func(v codec.Value) codec.Value {
		return v.(codec.Int32) + 1
	}, func(v codec.Value) { got = v })
	s.RegisterCommand(add)
	is.NoErr(s.SynchronizeCommandOnClients(add))
	_, ok := add.ID()
	is.True(ok)

	is.NoErr(add.SetValue(codec.Int32(41)))
	is.NoErr(s.ExecuteCommandOnServer(add))
	is.Equal(got, codec.Int32(42))
	is.True(!add.WaitingForServerReply())

	door := scene.NewEntity("door")
	s.RegisterEntity(door)
	is.NoErr(s.SynchronizeSceneEntitiesOnClients(door))
	id, ok := door.ID()
	is.True(ok)
	is.Equal(id, uint32(1))
}

func TestFuture(t *testing.T) {
	is := is.New(t)

	f := session.HostAsync(context.Background(), session.Config{
		Type:       session.TypeSinglePlayer,
		MaxPlayers: 1,
	}, []*roster.Player{roster.NewLocalPlayer("solo")}, nil)

	<-f.Done()
	status, s, err := f.Poll()
	is.NoErr(err)
	is.Equal(status, session.FutureReady)
	is.True(s != nil)
	s.Close()

	f = session.HostAsync(context.Background(), session.Config{Type: session.TypeWAN, MaxPlayers: 2},
		[]*roster.Player{roster.NewLocalPlayer("solo")}, nil)
	_, err = f.Wait(context.Background())
	is.True(errors.Is(err, session.ErrUnsupported))
	status, _, _ = f.Poll()
	is.Equal(status, session.FutureFailed)
}

func TestStateString(t *testing.T) {
	is := is.New(t)

	is.Equal(session.StateLobby.String(), "lobby")
	is.Equal(session.StateClosed.String(), "closed")
	is.Equal(session.State(42).String(), "state(42)")
	is.Equal(session.TypeLAN.String(), "lan")
}
