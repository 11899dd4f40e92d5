//go:build linux

package process

import (
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-init/pkg/errors"
)

// BecomeSubreaper makes orphaned descendants re-parent to the calling process
// instead of pid 1, so a supervisor that is not pid 1 still reaps them.
func BecomeSubreaper() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return errors.NewPermissionError("failed to set child subreaper", err)
	}
	return nil
}
