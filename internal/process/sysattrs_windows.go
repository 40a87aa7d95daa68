//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// Windows creation flags
const (
	CREATE_NEW_PROCESS_GROUP = 0x00000200
	DETACHED_PROCESS         = 0x00000008
)

// configureSysProcAttr gives the child its own process group; detached
// children also drop the parent's console.
func configureSysProcAttr(cmd *exec.Cmd, detached bool) {
	flags := uint32(CREATE_NEW_PROCESS_GROUP)
	if detached {
		flags |= DETACHED_PROCESS
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
}
