package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/blukai/lanparty/internal/rudp"
	"github.com/hashicorp/go-multierror"
)

const (
	MaxLocalPlayers = 4
	MaxPlayers      = 31

	DefaultPort             = 31337
	DefaultAppName          = "lanparty"
	DefaultDiscoveryTimeout = time.Second
)

type Type uint8

const (
	TypeSinglePlayer Type = iota
	TypeSplitScreen
	TypeLAN
	TypeWAN

	typeMax
)

func (t Type) String() string {
	switch t {
	case TypeSinglePlayer:
		return "single-player"
	case TypeSplitScreen:
		return "split-screen"
	case TypeLAN:
		return "lan"
	case TypeWAN:
		return "wan"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Local sessions run without a transport.
func (t Type) Local() bool {
	return t == TypeSinglePlayer || t == TypeSplitScreen
}

type Config struct {
	Type            Type
	MaxPlayers      int
	MaxLocalPlayers int
	// PrivateSlots are reserved for invited players.
	PrivateSlots int
	// Properties are matchmaking values, matched by index during discovery.
	Properties []int32

	// Port the host listens on and discovery probes. Defaults to
	// DefaultPort.
	Port int
	// DiscoveryAddr is where discovery probes go. Defaults to the LAN
	// broadcast address on Port.
	DiscoveryAddr    string
	DiscoveryTimeout time.Duration
	// AppName keeps unrelated applications from seeing each other's
	// sessions.
	AppName string

	Transport rudp.Config
}

func (cfg *Config) setDefaults() {
	if cfg.MaxLocalPlayers == 0 {
		cfg.MaxLocalPlayers = MaxLocalPlayers
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DiscoveryAddr == "" {
		cfg.DiscoveryAddr = net.JoinHostPort("255.255.255.255", strconv.Itoa(cfg.Port))
	}
}

// Validate reports every problem with cfg at once. Each of them wraps
// ErrInvalidConfig.
func (cfg *Config) Validate() error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if cfg.Type >= typeMax {
		invalid("unknown session type %d", cfg.Type)
	}
	if cfg.MaxPlayers < 1 || cfg.MaxPlayers > MaxPlayers {
		invalid("max players must be within 1..%d (got %d)", MaxPlayers, cfg.MaxPlayers)
	}
	if cfg.MaxLocalPlayers < 1 || cfg.MaxLocalPlayers > MaxLocalPlayers {
		invalid("max local players must be within 1..%d (got %d)", MaxLocalPlayers, cfg.MaxLocalPlayers)
	}
	if cfg.PrivateSlots < 0 || cfg.PrivateSlots >= cfg.MaxPlayers {
		invalid("private slots must be within 0..max players-1 (got %d)", cfg.PrivateSlots)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		invalid("port out of range (got %d)", cfg.Port)
	}
	return errs
}

// validatePlayers checks the number of local players a peer brings.
func (cfg *Config) validatePlayers(n int) error {
	var errs error
	if n < 1 || n > cfg.MaxLocalPlayers {
		errs = multierror.Append(errs, fmt.Errorf("%w: local players must be within 1..%d (got %d)", ErrInvalidConfig, cfg.MaxLocalPlayers, n))
	}
	if n > cfg.MaxPlayers {
		errs = multierror.Append(errs, fmt.Errorf("%w: %d local players exceed max players %d", ErrInvalidConfig, n, cfg.MaxPlayers))
	}
	return errs
}
