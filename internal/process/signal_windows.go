//go:build windows

package process

import "os"

func exitStatus(ps *os.ProcessState) (int, string) {
	return ps.ExitCode(), ""
}
