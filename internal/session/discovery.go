package session

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/blukai/lanparty/internal/debug"
	"github.com/blukai/lanparty/internal/logging"
	"github.com/blukai/lanparty/internal/protocol"
	"github.com/blukai/lanparty/internal/rudp"
	"github.com/phuslu/log"
)

// AvailableSession is a session that answered a discovery probe.
type AvailableSession struct {
	Addr             netip.AddrPort
	Type             Type
	PlayerCount      int
	OpenPrivateSlots int
	OpenPublicSlots  int
	Properties       []int32
}

// Filter selects sessions by property: index into Properties => required
// value.
type Filter map[int]int32

func (f Filter) match(properties []int32) bool {
	for i, want := range f {
		if i < 0 || i >= len(properties) || properties[i] != want {
			return false
		}
	}
	return true
}

// FindSessions probes cfg.DiscoveryAddr and collects answers for
// cfg.DiscoveryTimeout. No answers is not an error.
func FindSessions(parent context.Context, cfg Config, filter Filter, logger *log.Logger) ([]AvailableSession, error) {
	cfg.setDefaults()
	logger = logging.OrSilent(logger)
	if cfg.Type == TypeWAN {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Type)
	}

	peer, err := rudp.Listen("udp4", ":0", rudp.Config{}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not start discovery: %w", err)
	}
	defer peer.Close()

	req := protocol.DiscoveryRequest{App: protocol.AppFingerprint(cfg.AppName)}
	payload, err := req.MarshalBinary()
	debug.Assert(err == nil)
	if err := peer.SendDiscoveryRequest(cfg.DiscoveryAddr, payload); err != nil {
		return nil, fmt.Errorf("could not send discovery request: %w", err)
	}

	ctx, cancel := context.WithTimeout(parent, cfg.DiscoveryTimeout)
	defer cancel()
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	var found []AvailableSession
	seen := make(map[netip.AddrPort]struct{})
	for {
		for _, event := range peer.Drain() {
			if event.Type != rudp.EventDiscoveryResponse {
				continue
			}
			if _, ok := seen[event.Addr]; ok {
				continue
			}

			res := protocol.DiscoveryResponse{}
			if err := res.UnmarshalBinary(event.Payload); err != nil {
				logger.Warn().
					Str("addr", event.Addr.String()).
					Msgf("could not decode discovery response: %v", err)
				continue
			}
			seen[event.Addr] = struct{}{}
			if !filter.match(res.Properties) {
				continue
			}

			found = append(found, AvailableSession{
				Addr:             event.Addr,
				Type:             Type(res.SessionType),
				PlayerCount:      res.PlayerCount,
				OpenPrivateSlots: res.OpenPrivateSlots,
				OpenPublicSlots:  res.OpenPublicSlots,
				Properties:       res.Properties,
			})
		}

		select {
		case <-ctx.Done():
			// the window closing is the normal way out
			return found, parent.Err()
		case <-ticker.C:
		}
	}
}

// FindSessionsAsync runs FindSessions in the background.
func FindSessionsAsync(ctx context.Context, cfg Config, filter Filter, logger *log.Logger) *Future[[]AvailableSession] {
	return goFuture(func() ([]AvailableSession, error) {
		return FindSessions(ctx, cfg, filter, logger)
	})
}
