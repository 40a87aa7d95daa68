// Package ports hands out free TCP ports on the loopback interface.
package ports

import (
	"fmt"
	"net"
)

// Free asks the kernel for an unused TCP port. The port is released before
// returning, so another process may claim it first.
func Free() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("getFreePort: could not get port: %w", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}
