package supervisor

import (
	"time"
)

// Shutdown stops every running unit: a terminate signal to each, the grace
// period, then a kill signal to each unit still recorded as running. The grace
// period is an upper bound, not a fixed wait: it ends as soon as no unit is
// left running. Exits seen during the grace period are
// recorded without restarts. State is not re-checked after the kill sweep;
// whatever exits later is reaped like any other child. Only the first call has
// an effect.
func (s *Supervisor) Shutdown() {
	if s.stopping {
		return
	}
	s.stopping = true
	defer s.guard("shutdown")

	for _, u := range s.registry.Running() {
		if u.PID() <= 1 {
			continue
		}
		s.logger.Infof("Stopping service %s (pid=%d)", u.Name, u.PID())
		if err := s.signaler.Terminate(u.PID()); err != nil {
			s.logger.Warnf("Failed to terminate service %s (pid=%d): %v", u.Name, u.PID(), err)
		}
	}

	s.awaitExits(s.options.GracePeriod)

	for _, u := range s.registry.Running() {
		if u.PID() <= 1 {
			continue
		}
		s.logger.Warnf("Killing service %s (pid=%d) after %v grace period", u.Name, u.PID(), s.options.GracePeriod)
		if err := s.signaler.Kill(u.PID()); err != nil {
			s.logger.Warnf("Failed to kill service %s (pid=%d): %v", u.Name, u.PID(), err)
		}
	}

	s.publish()
}

// awaitExits reaps until no unit is running or the grace period is over.
func (s *Supervisor) awaitExits(grace time.Duration) {
	deadline := s.now().Add(grace)
	for {
		s.reapAll()
		if len(s.registry.Running()) == 0 {
			return
		}
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return
		}
		if remaining > s.options.PollInterval {
			remaining = s.options.PollInterval
		}
		time.Sleep(remaining)
	}
}
