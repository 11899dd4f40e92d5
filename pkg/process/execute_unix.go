//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes puts each unit in its own process group so that stop
// signals reach the shell and everything it started.
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
