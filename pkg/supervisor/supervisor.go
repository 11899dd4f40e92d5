// Package supervisor starts, watches and stops the units of a registry. All
// registry access happens on the goroutine that calls Run; the only state other
// goroutines may touch is the shutdown request flag.
package supervisor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/process"
	"github.com/core-tools/hsu-init/pkg/units"
)

const (
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultGracePeriod        = time.Second
	DefaultSpawnRetryInterval = 5 * time.Second
	DefaultMaxSchedulerPasses = 128
)

type Options struct {
	// PollInterval bounds how long the loop sleeps without a child or
	// shutdown notification, and with it the shutdown request latency.
	PollInterval time.Duration
	// GracePeriod separates the terminate and kill sweeps of shutdown.
	GracePeriod time.Duration
	// SpawnRetryInterval is how often the scheduler is re-run while a spawn
	// failure is outstanding.
	SpawnRetryInterval time.Duration
	// MaxSchedulerPasses caps a scheduler run on pathological input.
	MaxSchedulerPasses int
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.SpawnRetryInterval <= 0 {
		o.SpawnRetryInterval = DefaultSpawnRetryInterval
	}
	if o.MaxSchedulerPasses <= 0 {
		o.MaxSchedulerPasses = DefaultMaxSchedulerPasses
	}
}

// Dependencies are the OS-facing collaborators. Nil fields get the real
// implementations from pkg/process.
type Dependencies struct {
	Spawner  process.Spawner
	Signaler process.Signaler
	Waiter   process.Waiter
}

// Observer receives a copy of the registry state after it changes. It is
// called on the control goroutine and must not block for long.
type Observer interface {
	UnitsChanged(snapshot []units.Status)
}

type Supervisor struct {
	options  Options
	registry *units.Registry
	spawner  process.Spawner
	signaler process.Signaler
	waiter   process.Waiter
	logger   logging.Logger

	observers []Observer
	unitFiles <-chan string

	shutdownRequested atomic.Bool
	wake              chan struct{}

	stopping     bool
	dirty        bool
	retryPending bool
	lastRetry    time.Time
	lastWaitErr  string

	now func() time.Time
}

func New(options Options, registry *units.Registry, deps Dependencies, logger logging.Logger) *Supervisor {
	options.setDefaults()

	if deps.Spawner == nil {
		deps.Spawner = process.NewShellSpawner(process.ExecutionConfig{}, logger)
	}
	if deps.Signaler == nil {
		deps.Signaler = process.GroupSignaler{}
	}
	if deps.Waiter == nil {
		deps.Waiter = process.ChildWaiter{}
	}

	return &Supervisor{
		options:  options,
		registry: registry,
		spawner:  deps.Spawner,
		signaler: deps.Signaler,
		waiter:   deps.Waiter,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

func (s *Supervisor) Registry() *units.Registry {
	return s.registry
}

func (s *Supervisor) Options() Options {
	return s.options
}

// AddObserver registers o for state change notifications. Call before Run.
func (s *Supervisor) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// WatchUnitFiles makes Run load unit files whose paths arrive on paths. Call
// before Run.
func (s *Supervisor) WatchUnitFiles(paths <-chan string) {
	s.unitFiles = paths
}

// RequestShutdown asks the control loop to stop all units and return. It is
// safe to call from any goroutine, any number of times; the request cannot be
// withdrawn.
func (s *Supervisor) RequestShutdown() {
	s.shutdownRequested.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Supervisor) ShutdownRequested() bool {
	return s.shutdownRequested.Load()
}

func (s *Supervisor) publish() {
	s.dirty = false
	if len(s.observers) == 0 {
		return
	}
	snapshot := s.registry.Snapshot()
	for _, o := range s.observers {
		o.UnitsChanged(snapshot)
	}
}

func (s *Supervisor) publishIfDirty() {
	if s.dirty {
		s.publish()
	}
}

// guard keeps a panic in one dispatch from taking down the supervisor, which
// as pid 1 would take the machine with it.
func (s *Supervisor) guard(what string) {
	if r := recover(); r != nil {
		s.logger.Errorf("Recovered from panic in %s: %v", what, r)
	}
}

func describeExit(event process.ExitEvent) string {
	if event.Signaled {
		return fmt.Sprintf("status=%d signal=%d", event.Code, event.Signal)
	}
	return fmt.Sprintf("status=%d", event.Code)
}
