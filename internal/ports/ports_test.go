package ports

import (
	"net"
	"strconv"
	"testing"
)

func TestFreeIsBindable(t *testing.T) {
	port, err := Free()
	if err != nil {
		t.Fatalf("free: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("invalid port %d", port)
	}
	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("port %d not bindable: %v", port, err)
	}
	_ = l.Close()
}
