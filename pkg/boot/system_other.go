//go:build !linux

package boot

import (
	"github.com/core-tools/hsu-init/pkg/config"
	"github.com/core-tools/hsu-init/pkg/errors"
)

type SystemMounter struct{}

func (SystemMounter) Mount(source, target, fstype, data string) error {
	return errors.NewPermissionError("mounting is only supported on linux", nil)
}

func Halt(action config.FinalAction) error {
	if action == config.FinalActionExit || action == "" {
		return nil
	}
	return errors.NewPermissionError("halting is only supported on linux", nil)
}
