//go:build unix

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
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}
}
