//go:build windows

package logger

import (
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/windows"
)

func fdWidth(fd uintptr) int {
	if !isatty.IsTerminal(fd) {
		return 0
	}
	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(windows.Handle(fd), &info); err != nil {
		return 0
	}
	return int(info.Window.Right-info.Window.Left) + 1
}
