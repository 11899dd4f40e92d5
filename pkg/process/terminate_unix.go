//go:build !windows

package process

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-init/pkg/errors"
)

// GroupSignaler signals the process group of a unit, falling back to the
// process itself when the group is gone or was never created.
type GroupSignaler struct{}

func (GroupSignaler) Terminate(pid int) error {
	return signalProcessGroup(pid, unix.SIGTERM)
}

func (GroupSignaler) Kill(pid int) error {
	return signalProcessGroup(pid, unix.SIGKILL)
}

func signalProcessGroup(pid int, sig unix.Signal) error {
	// pid 1 is ourselves and -1 would mean every process on the machine.
	if pid <= 1 {
		return errors.NewValidationError(fmt.Sprintf("refusing to signal pid %d", pid), nil)
	}

	err := unix.Kill(-pid, sig)
	if err == unix.ESRCH {
		err = unix.Kill(pid, sig)
	}
	if err != nil {
		return errors.NewProcessError(fmt.Sprintf("failed to send %s", unix.SignalName(sig)), err).WithContext("pid", pid)
	}
	return nil
}
