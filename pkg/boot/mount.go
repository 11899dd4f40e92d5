// Package boot prepares a bare system before any unit is started: pseudo
// filesystems and kernel modules. Every step is best effort.
package boot

import (
	"fmt"
	"os"

	"github.com/core-tools/hsu-init/pkg/config"
	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
)

// Mounter performs a single mount.
type Mounter interface {
	Mount(source, target, fstype, data string) error
}

// MountAll mounts each filesystem in order, creating missing targets. A
// failed mount is logged and collected; the remaining mounts still run. It
// returns the number of successful mounts and the collected failures.
func MountAll(mounts []config.MountConfig, mounter Mounter, logger logging.Logger) (int, error) {
	logger.Infof("Mounting pseudo filesystems, count: %d", len(mounts))

	failures := errors.NewErrorCollection()
	mounted := 0
	for _, m := range mounts {
		if err := os.MkdirAll(m.Target, 0755); err != nil {
			logger.Errorf("Failed to create mount point %s: %v", m.Target, err)
			failures.Add(errors.NewIOError("failed to create mount point", err).WithContext("target", m.Target))
			continue
		}
		if err := mounter.Mount(m.Source, m.Target, m.FSType, m.Options); err != nil {
			logger.Errorf("Failed to mount %s: %v", m.Target, err)
			failures.Add(errors.NewIOError(fmt.Sprintf("failed to mount %s", m.FSType), err).
				WithContext("source", m.Source).
				WithContext("target", m.Target))
			continue
		}
		logger.Debugf("Mounted %s on %s type %s", m.Source, m.Target, m.FSType)
		mounted++
	}
	return mounted, failures.ToError()
}
