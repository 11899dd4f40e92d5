package supervisor

import (
	"github.com/core-tools/hsu-init/pkg/process"
	"github.com/core-tools/hsu-init/pkg/units"
)

// HandleExit applies one reaped exit to the registry. Exits of processes that
// belong to no unit, such as re-parented orphans, change nothing. A unit whose
// policy asks for it is respawned at once; otherwise it is left stopped with
// its PID cleared. Nothing is respawned once shutdown has begun.
func (s *Supervisor) HandleExit(event process.ExitEvent) {
	defer s.guard("exit handling")

	u, ok := s.registry.LookupPID(event.PID)
	if !ok {
		s.logger.Debugf("Reaped unmanaged process (pid=%d) %s", event.PID, describeExit(event))
		return
	}

	s.logger.Warnf("Service %s (pid=%d) exited %s", u.Name, event.PID, describeExit(event))

	s.registry.MarkExited(u, units.ExitInfo{
		PID:      event.PID,
		Code:     event.Code,
		Signaled: event.Signaled,
		Signal:   event.Signal,
		At:       s.now(),
	})
	s.dirty = true

	if s.stopping || s.ShutdownRequested() {
		return
	}
	if !u.Restart.ShouldRestart(event.Code) {
		return
	}

	s.logger.Infof("Restarting service %s (policy=%s)", u.Name, u.Restart)
	s.registry.MarkRestarting(u)
	s.spawn(u)
}

// reapAll drains every exited child and dispatches it. It never blocks.
func (s *Supervisor) reapAll() int {
	reaped := 0
	for {
		event, ok, err := s.waiter.Reap()
		if err != nil {
			if msg := err.Error(); msg != s.lastWaitErr {
				s.lastWaitErr = msg
				s.logger.Errorf("Failed to reap children: %v", err)
			}
			return reaped
		}
		if !ok {
			return reaped
		}
		reaped++
		s.HandleExit(event)
	}
}
