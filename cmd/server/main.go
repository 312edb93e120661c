package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blukai/lanparty/internal/codec"
	"github.com/blukai/lanparty/internal/command"
	"github.com/blukai/lanparty/internal/logging"
	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/session"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	Port         int     `envconfig:"PORT" default:"31337"`
	MaxPlayers   int     `envconfig:"MAX_PLAYERS" default:"8"`
	PrivateSlots int     `envconfig:"PRIVATE_SLOTS" default:"0"`
	Properties   []int32 `envconfig:"PROPERTIES"`
	PlayerName   string  `envconfig:"PLAYER_NAME" default:"host"`
	StartAfter   int     `envconfig:"START_AFTER" default:"2"`
	AppName      string  `envconfig:"APP_NAME" default:"lanparty"`
	LogLevel     string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFile      string  `envconfig:"LOG_FILE"`
	TickRate     int     `envconfig:"TICK_RATE" default:"60"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("lanparty", config); err != nil {
		return nil, err
	}
	return config, nil
}

// newPingCommand echoes the caller's timestamp back to everyone.
func newPingCommand(logger *log.Logger) *command.Command {
	ping := command.New("ping", codec.KindInt64, nil, func(v codec.Value) {
		sent := time.Unix(0, int64(v.(codec.Int64)))
		logger.Info().
			Dur("age", time.Since(sent)).
			Msg("ping")
	})
	ping.Transfer = command.TransferReliable
	return ping
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	if config.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive (got %d)", config.TickRate)
	}

	logger := logging.New(logging.Config{Level: config.LogLevel, File: config.LogFile})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := session.Host(ctx, session.Config{
		Type:         session.TypeLAN,
		MaxPlayers:   config.MaxPlayers,
		PrivateSlots: config.PrivateSlots,
		Properties:   config.Properties,
		Port:         config.Port,
		AppName:      config.AppName,
	}, []*roster.Player{roster.NewLocalPlayer(config.PlayerName)}, logger)
	if err != nil {
		return fmt.Errorf("could not host session: %w", err)
	}
	defer s.Close()
	logger.Info().Msgf("hosting session on %s", s.Addr())

	ping := newPingCommand(logger)
	s.RegisterCommand(ping)
	if err := s.SynchronizeCommandOnClients(ping); err != nil {
		return fmt.Errorf("could not synchronize commands: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(time.Second / time.Duration(config.TickRate))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case sig := <-signalChan:
			logger.Info().Msgf("received %+v signal", sig)
			return s.Close()
		case <-statsTicker.C:
			logger.Info().
				Int("players", len(s.AllPlayers())).
				Uint64("sent_bps", s.BytesSentPerSecond()).
				Uint64("received_bps", s.BytesReceivedPerSecond()).
				Msg("stats")
		case <-ticker.C:
			s.Update()
			if err := handleEvents(s, config, logger); err != nil {
				return err
			}
			if s.State() == session.StateClosed {
				return nil
			}
		}
	}
}

func handleEvents(s *session.Session, config *Config, logger *log.Logger) error {
	for _, event := range s.PollEvents() {
		switch event.Type {
		case session.EventPlayerJoined, session.EventPlayerLeft:
			logger.Info().
				Str("event", event.Type.String()).
				Str("player", event.Player.String()).
				Int("players", len(s.AllPlayers())).
				Msg("roster changed")
		case session.EventError:
			logger.Warn().Msgf("session error: %v", event.Err)
		default:
			logger.Info().Msgf("session %s", event.Type)
		}
	}

	if s.State() == session.StateLobby && len(s.AllPlayers()) >= config.StartAfter {
		logger.Info().Msgf("%d players joined, starting", len(s.AllPlayers()))
		if err := s.StartSession(); err != nil {
			return fmt.Errorf("could not start session: %w", err)
		}
	}
	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
