//go:build windows

package rudp

import (
	"net"
	"syscall"
)

// broadcastListenConfig sets SO_BROADCAST so discovery probes can be sent to
// the LAN broadcast address.
func broadcastListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
		},
	}
}
