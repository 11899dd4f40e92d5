//go:build !windows

package process

import (
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-init/pkg/errors"
)

// ExitEventFromStatus normalizes a wait status: the exit code for a normal
// exit, SignaledExitCode when the process was killed by a signal.
func ExitEventFromStatus(pid int, status unix.WaitStatus) ExitEvent {
	event := ExitEvent{PID: pid, Code: SignaledExitCode}
	switch {
	case status.Exited():
		event.Code = status.ExitStatus()
	case status.Signaled():
		event.Signaled = true
		event.Signal = int(status.Signal())
	}
	return event
}

// ChildWaiter reaps any child of the calling process, including orphans
// re-parented to it, with wait4(-1, WNOHANG).
type ChildWaiter struct{}

func (ChildWaiter) Reap() (ExitEvent, bool, error) {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			return ExitEvent{}, false, nil
		case err != nil:
			return ExitEvent{}, false, errors.NewProcessError("wait4 failed", err)
		case pid <= 0:
			return ExitEvent{}, false, nil
		}
		return ExitEventFromStatus(pid, status), true, nil
	}
}
