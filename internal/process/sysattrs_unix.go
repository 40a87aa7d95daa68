//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts a detached child in a new session (setsid) so it
// leaves the controlling terminal and survives the parent. Attached children
// get their own process group.
func configureSysProcAttr(cmd *exec.Cmd, detached bool) {
	attrs := &syscall.SysProcAttr{}
	if detached {
		attrs.Setsid = true
	} else {
		attrs.Setpgid = true
	}
	cmd.SysProcAttr = attrs
}
