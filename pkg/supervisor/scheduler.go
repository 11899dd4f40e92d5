package supervisor

import (
	"github.com/core-tools/hsu-init/pkg/units"
)

// StartPending runs the dependency scheduler: full passes over the registry in
// registration order, spawning every not-started unit whose dependency is
// satisfied, until a pass starts nothing or the pass limit is hit. Units left
// not-started (a dependency cycle, a spawn failure) stay dormant. It returns
// the number of units started.
func (s *Supervisor) StartPending() int {
	total := 0
	for pass := 0; pass < s.options.MaxSchedulerPasses; pass++ {
		started := 0
		for i := 0; i < s.registry.Len(); i++ {
			u := s.registry.At(i)
			if u.State() != units.StateNotStarted || !s.dependencySatisfied(u) {
				continue
			}
			if s.spawn(u) {
				started++
			}
		}
		total += started
		if started == 0 {
			return total
		}
	}

	s.logger.Warnf("Scheduler stopped after %d passes without reaching a fixpoint", s.options.MaxSchedulerPasses)
	return total
}

// dependencySatisfied is true when the unit has no dependency, when the
// dependency has been started at least once, or when no unit of that name is
// registered.
func (s *Supervisor) dependencySatisfied(u *units.Unit) bool {
	if u.After == "" {
		return true
	}
	dep, ok := s.registry.Lookup(u.After)
	if !ok {
		return true
	}
	return dep.HasStarted()
}

// reportDormant logs every unit the scheduler could not start.
func (s *Supervisor) reportDormant() {
	for _, u := range s.registry.Units() {
		if u.State() != units.StateNotStarted {
			continue
		}
		if s.dependencySatisfied(u) {
			s.logger.Warnf("Service %s not started; will retry", u.Name)
		} else {
			s.logger.Warnf("Service %s not started; waiting for %s", u.Name, u.After)
		}
	}
}

// retryIfDue re-runs the scheduler once the retry interval has passed since a
// spawn failure.
func (s *Supervisor) retryIfDue() {
	if !s.retryPending || s.stopping {
		return
	}
	now := s.now()
	if now.Sub(s.lastRetry) < s.options.SpawnRetryInterval {
		return
	}
	s.retryPending = false
	s.lastRetry = now
	s.logger.Debugf("Retrying pending services, pending: %d", s.registry.Pending())
	s.StartPending()
}
