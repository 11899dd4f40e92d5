package supervisor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-init/pkg/process"
	"github.com/core-tools/hsu-init/pkg/units"
)

// MockLogger is a mock implementation of logging.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) LogLevelf(level int, format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.Called(format, args)
}

func newMockLogger() *MockLogger {
	logger := &MockLogger{}
	logger.On("Debugf", mock.Anything, mock.Anything).Maybe()
	logger.On("Infof", mock.Anything, mock.Anything).Maybe()
	logger.On("Warnf", mock.Anything, mock.Anything).Maybe()
	logger.On("Errorf", mock.Anything, mock.Anything).Maybe()
	return logger
}

// fakeSpawner hands out increasing PIDs and records what it started.
type fakeSpawner struct {
	mu      sync.Mutex
	nextPID int
	started []string
	pids    map[string][]int
	fail    map[string]int
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		nextPID: 100,
		pids:    make(map[string][]int),
		fail:    make(map[string]int),
	}
}

// failNext makes the next n spawns of name fail.
func (f *fakeSpawner) failNext(name string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = n
}

func (f *fakeSpawner) Spawn(name, command string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[name] > 0 {
		f.fail[name]--
		return 0, fmt.Errorf("spawn %s: resource temporarily unavailable", name)
	}
	f.nextPID++
	f.started = append(f.started, name)
	f.pids[name] = append(f.pids[name], f.nextPID)
	return f.nextPID, nil
}

func (f *fakeSpawner) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func (f *fakeSpawner) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pids[name])
}

// fakeWaiter returns queued exit events in order.
type fakeWaiter struct {
	mu     sync.Mutex
	queue  []process.ExitEvent
	err    error
	reaped int
}

func (f *fakeWaiter) push(events ...process.ExitEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, events...)
}

func (f *fakeWaiter) Reap() (process.ExitEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return process.ExitEvent{}, false, f.err
	}
	if len(f.queue) == 0 {
		return process.ExitEvent{}, false, nil
	}
	event := f.queue[0]
	f.queue = f.queue[1:]
	f.reaped++
	return event, true, nil
}

// fakeSignaler records signals. PIDs in obey exit as soon as they are
// terminated; every PID exits when killed.
type fakeSignaler struct {
	mu         sync.Mutex
	waiter     *fakeWaiter
	obey       map[int]bool
	terminated []int
	killed     []int
}

func newFakeSignaler(waiter *fakeWaiter) *fakeSignaler {
	return &fakeSignaler{waiter: waiter, obey: make(map[int]bool)}
}

func (f *fakeSignaler) Terminate(pid int) error {
	f.mu.Lock()
	f.terminated = append(f.terminated, pid)
	obey := f.obey[pid]
	f.mu.Unlock()
	if obey {
		f.waiter.push(signaled(pid, 15))
	}
	return nil
}

func (f *fakeSignaler) Kill(pid int) error {
	f.mu.Lock()
	f.killed = append(f.killed, pid)
	f.mu.Unlock()
	f.waiter.push(signaled(pid, 9))
	return nil
}

func (f *fakeSignaler) Terminated() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.terminated...)
}

func (f *fakeSignaler) Killed() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.killed...)
}

func exited(pid, code int) process.ExitEvent {
	return process.ExitEvent{PID: pid, Code: code}
}

func signaled(pid, sig int) process.ExitEvent {
	return process.ExitEvent{PID: pid, Code: process.SignaledExitCode, Signaled: true, Signal: sig}
}

type harness struct {
	sup      *Supervisor
	registry *units.Registry
	spawner  *fakeSpawner
	waiter   *fakeWaiter
	signaler *fakeSignaler
	logger   *MockLogger
}

func newHarness(t *testing.T, options Options, defs ...*units.Unit) *harness {
	t.Helper()

	registry := units.NewRegistry(0)
	for _, u := range defs {
		_, err := registry.Add(u)
		require.NoError(t, err)
	}

	waiter := &fakeWaiter{}
	h := &harness{
		registry: registry,
		spawner:  newFakeSpawner(),
		waiter:   waiter,
		signaler: newFakeSignaler(waiter),
		logger:   newMockLogger(),
	}
	if options.GracePeriod == 0 {
		options.GracePeriod = 50 * time.Millisecond
	}
	if options.PollInterval == 0 {
		options.PollInterval = 5 * time.Millisecond
	}
	h.sup = New(options, registry, Dependencies{
		Spawner:  h.spawner,
		Signaler: h.signaler,
		Waiter:   h.waiter,
	}, h.logger)
	return h
}

func (h *harness) unit(t *testing.T, name string) *units.Unit {
	t.Helper()
	u, ok := h.registry.Lookup(name)
	require.True(t, ok, "unit %s not registered", name)
	return u
}

func unit(name, command string, restart units.RestartPolicy, after string) *units.Unit {
	return &units.Unit{Name: name, Command: command, Restart: restart, After: after}
}

// recordingObserver keeps every published snapshot.
type recordingObserver struct {
	mu        sync.Mutex
	snapshots [][]units.Status
}

func (r *recordingObserver) UnitsChanged(snapshot []units.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recordingObserver) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}
