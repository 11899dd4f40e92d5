//go:build linux

package boot

import (
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-init/pkg/config"
	"github.com/core-tools/hsu-init/pkg/errors"
)

// SystemMounter mounts through mount(2).
type SystemMounter struct{}

func (SystemMounter) Mount(source, target, fstype, data string) error {
	if err := unix.Mount(source, target, fstype, 0, data); err != nil {
		if err == unix.EBUSY {
			return errors.NewConflictError("already mounted", err)
		}
		if err == unix.EPERM {
			return errors.NewPermissionError("mount not permitted", err)
		}
		return err
	}
	return nil
}

// Halt flushes filesystems and then powers off or reboots the machine. For
// FinalActionExit it does nothing and returns nil. On success it does not
// return.
func Halt(action config.FinalAction) error {
	var cmd int
	switch action {
	case config.FinalActionExit, "":
		return nil
	case config.FinalActionPoweroff:
		cmd = unix.LINUX_REBOOT_CMD_POWER_OFF
	case config.FinalActionReboot:
		cmd = unix.LINUX_REBOOT_CMD_RESTART
	default:
		return errors.NewValidationError("unsupported final action: "+string(action), nil)
	}

	unix.Sync()
	if err := unix.Reboot(cmd); err != nil {
		return errors.NewPermissionError("reboot(2) failed", err).WithContext("action", string(action))
	}
	return nil
}
