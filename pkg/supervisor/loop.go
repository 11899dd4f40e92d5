package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/core-tools/hsu-init/pkg/units"
)

// Run starts every startable unit and then supervises until shutdown is
// requested or ctx is done, after which it stops all units and returns. Exits
// are picked up on SIGCHLD and, as a fallback, every PollInterval.
func (s *Supervisor) Run(ctx context.Context) error {
	childExited := make(chan os.Signal, 1)
	signal.Notify(childExited, syscall.SIGCHLD)
	defer signal.Stop(childExited)

	s.logger.Infof("Starting %d services, capacity: %d", s.registry.Len(), s.registry.Cap())
	s.StartPending()
	s.reportDormant()
	s.publish()

	ticker := time.NewTicker(s.options.PollInterval)
	defer ticker.Stop()

	unitFiles := s.unitFiles
	for !s.ShutdownRequested() {
		select {
		case <-ctx.Done():
			s.logger.Infof("Context done, shutting down: %v", ctx.Err())
			s.RequestShutdown()
		case <-childExited:
		case <-ticker.C:
		case <-s.wake:
		case path, ok := <-unitFiles:
			if !ok {
				unitFiles = nil
				break
			}
			s.loadUnitFile(path)
		}

		s.reapAll()
		s.retryIfDue()
		s.publishIfDirty()
	}

	s.logger.Infof("Shutdown requested, stopping %d running services", len(s.registry.Running()))
	s.Shutdown()
	s.logger.Infof("Shutdown complete")
	return nil
}

// loadUnitFile registers a unit file that appeared after boot and schedules
// it at once. Paths that already produced a unit are ignored.
func (s *Supervisor) loadUnitFile(path string) {
	defer s.guard("unit file load")

	if s.ShutdownRequested() || s.registry.HasSource(path) {
		return
	}
	if _, err := units.LoadFile(path, s.registry, s.logger); err != nil {
		return
	}
	s.dirty = true
	s.StartPending()
}
