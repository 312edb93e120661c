//go:build !unix && !windows

package rudp

import "net"

func broadcastListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
