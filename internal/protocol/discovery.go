package protocol

import (
	"github.com/blukai/lanparty/internal/codec"
	"github.com/cespare/xxhash/v2"
)

// AppFingerprint reduces an application name to the 64-bit value carried by
// discovery requests. Hosts only answer requests whose fingerprint matches
// their own, so unrelated games on the same LAN stay invisible.
func AppFingerprint(appName string) uint64 {
	return xxhash.Sum64String(appName)
}

// DiscoveryRequest is the payload of a LAN discovery probe.
type DiscoveryRequest struct {
	App uint64
}

func (m *DiscoveryRequest) MarshalBinary() ([]byte, error) {
	return codec.NewWriter().WriteUint64(m.App).Bytes(), nil
}

func (m *DiscoveryRequest) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)
	app, err := r.ReadUint64()
	if err != nil {
		return err
	}
	m.App = app
	return nil
}

// DiscoveryResponse describes an advertised session.
//
//	sessionType:u8, playerCount, openPrivateSlots, openPublicSlots,
//	propertyCount, {value:int32}...
type DiscoveryResponse struct {
	SessionType      uint8
	PlayerCount      int
	OpenPrivateSlots int
	OpenPublicSlots  int
	Properties       []int32
}

func (m *DiscoveryResponse) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter()
	w.WriteUint8(m.SessionType)
	w.WriteUvarint(uint64(m.PlayerCount))
	w.WriteUvarint(uint64(m.OpenPrivateSlots))
	w.WriteUvarint(uint64(m.OpenPublicSlots))
	w.WriteUvarint(uint64(len(m.Properties)))
	for _, p := range m.Properties {
		w.WriteInt32(p)
	}
	return w.Bytes(), nil
}

func (m *DiscoveryResponse) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)

	sessionType, err := r.ReadUint8()
	if err != nil {
		return err
	}
	counts := [3]uint64{}
	for i := range counts {
		if counts[i], err = r.ReadUvarint(); err != nil {
			return err
		}
	}
	n, err := r.ReadCount(4)
	if err != nil {
		return err
	}
	properties := make([]int32, n)
	for i := range properties {
		if properties[i], err = r.ReadInt32(); err != nil {
			return err
		}
	}

	m.SessionType = sessionType
	m.PlayerCount = int(counts[0])
	m.OpenPrivateSlots = int(counts[1])
	m.OpenPublicSlots = int(counts[2])
	m.Properties = properties
	return nil
}
