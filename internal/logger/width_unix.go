//go:build !windows

package logger

import (
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

func fdWidth(fd uintptr) int {
	if !isatty.IsTerminal(fd) {
		return 0
	}
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil || ws == nil {
		return 0
	}
	return int(ws.Col)
}
