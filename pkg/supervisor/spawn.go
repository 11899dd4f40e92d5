package supervisor

import (
	"github.com/core-tools/hsu-init/pkg/units"
)

// spawn starts the process of u. On failure u stays not-started and a
// scheduler retry is queued.
func (s *Supervisor) spawn(u *units.Unit) bool {
	pid, err := s.spawner.Spawn(u.Name, u.Command)
	if err != nil {
		s.logger.Errorf("Failed to start service %s: %v", u.Name, err)
		s.queueRetry()
		return false
	}

	if err := s.registry.MarkRunning(u, pid, s.now()); err != nil {
		s.logger.Errorf("Failed to record start of service %s (pid=%d): %v", u.Name, pid, err)
		s.queueRetry()
		return false
	}

	s.dirty = true
	s.logger.Infof("Started service %s (pid=%d)", u.Name, pid)
	return true
}

func (s *Supervisor) queueRetry() {
	if s.retryPending {
		return
	}
	s.retryPending = true
	s.lastRetry = s.now()
}
