package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blukai/lanparty/internal/codec"
	"github.com/blukai/lanparty/internal/command"
	"github.com/blukai/lanparty/internal/logging"
	"github.com/blukai/lanparty/internal/roster"
	"github.com/blukai/lanparty/internal/session"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"github.com/phuslu/log"
)

type Config struct {
	Port          int           `envconfig:"PORT" default:"31337"`
	DiscoveryAddr string        `envconfig:"DISCOVERY_ADDR"`
	PlayerNames   []string      `envconfig:"PLAYER_NAME" default:"player"`
	AppName       string        `envconfig:"APP_NAME" default:"lanparty"`
	PingInterval  time.Duration `envconfig:"PING_INTERVAL" default:"2s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string        `envconfig:"LOG_FILE"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("lanparty", config); err != nil {
		return nil, err
	}
	return config, nil
}

func printSessions(found []session.AvailableSession) {
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"#", "Address", "Type", "Players", "Open Public", "Open Private", "Properties"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for i, s := range found {
		tw.Append([]string{
			strconv.Itoa(i),
			s.Addr.String(),
			s.Type.String(),
			strconv.Itoa(s.PlayerCount),
			strconv.Itoa(s.OpenPublicSlots),
			strconv.Itoa(s.OpenPrivateSlots),
			fmt.Sprintf("%v", s.Properties),
		})
	}

	tw.Render()
	fmt.Println()
}

func printRoster(s *session.Session) {
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Name", "Host", "Origin"})
	tw.SetBorder(true)

	for _, p := range s.AllPlayers() {
		host := ""
		if p.IsHost() {
			host = "*"
		}
		tw.Append([]string{p.ID(), p.Name(), host, p.Origin().String()})
	}

	tw.Render()
	fmt.Println()
}

// newPingCommand must match the host's command list.
func newPingCommand(logger *log.Logger) *command.Command {
	ping := command.New("ping", codec.KindInt64, nil, func(v codec.Value) {
		sent := time.Unix(0, int64(v.(codec.Int64)))
		logger.Info().
			Dur("age", time.Since(sent)).
			Msg("pong")
	})
	ping.Transfer = command.TransferReliable
	return ping
}

func pickSession(found []session.AvailableSession) (session.AvailableSession, bool) {
	for _, s := range found {
		if s.Type == session.TypeLAN && s.OpenPublicSlots > 0 {
			return s, true
		}
	}
	return session.AvailableSession{}, false
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := logging.New(logging.Config{Level: config.LogLevel, File: config.LogFile})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := session.Config{
		Port:          config.Port,
		DiscoveryAddr: config.DiscoveryAddr,
		AppName:       config.AppName,
	}

	found, err := session.FindSessions(ctx, cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("could not find sessions: %w", err)
	}
	printSessions(found)

	available, ok := pickSession(found)
	if !ok {
		return fmt.Errorf("no open sessions found")
	}

	players := make([]*roster.Player, len(config.PlayerNames))
	for i, name := range config.PlayerNames {
		players[i] = roster.NewLocalPlayer(name)
	}

	joinCtx, joinCancel := context.WithTimeout(ctx, 10*time.Second)
	defer joinCancel()
	s, err := session.Join(joinCtx, cfg, available, players, logger)
	if err != nil {
		return fmt.Errorf("could not join: %w", err)
	}
	defer s.Close()

	ping := newPingCommand(logger)
	s.RegisterCommand(ping)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	pingTicker := time.NewTicker(config.PingInterval)
	defer pingTicker.Stop()

	printRoster(s)
	for {
		select {
		case sig := <-signalChan:
			logger.Info().Msgf("received %+v signal", sig)
			return s.Close()
		case <-pingTicker.C:
			if _, ok := ping.ID(); !ok || ping.WaitingForServerReply() {
				continue
			}
			if err := ping.SetValue(codec.Int64(time.Now().UnixNano())); err != nil {
				return err
			}
			if err := s.ExecuteCommandOnServer(ping); err != nil {
				logger.Warn().Msgf("could not ping: %v", err)
			}
		case <-ticker.C:
			s.Update()
			for _, event := range s.PollEvents() {
				switch event.Type {
				case session.EventPlayerJoined, session.EventPlayerLeft:
					printRoster(s)
				case session.EventStarting:
					// nothing to load
					if err := s.SynchronizationDone(); err != nil {
						return fmt.Errorf("could not report synchronization: %w", err)
					}
				case session.EventClosed:
					logger.Info().Msg("session closed by host")
					return nil
				case session.EventError:
					logger.Warn().Msgf("session error: %v", event.Err)
				default:
					logger.Info().Msgf("session %s", event.Type)
				}
			}
		}
	}
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
