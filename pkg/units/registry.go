package units

import (
	"fmt"
	"time"

	"github.com/core-tools/hsu-init/pkg/errors"
)

// DefaultCapacity is the number of units a registry holds unless configured.
const DefaultCapacity = 64

// Registry is a fixed-capacity, insertion-ordered collection of units. It is
// not safe for concurrent use: only the control goroutine touches it.
type Registry struct {
	slots    []*Unit
	capacity int
	byName   map[string]int
	byPID    map[int]int
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		slots:    make([]*Unit, 0, capacity),
		capacity: capacity,
		byName:   make(map[string]int),
		byPID:    make(map[int]int),
	}
}

// Add appends a validated unit in the not-started state and returns its index.
// A full registry yields a capacity error and leaves the registry unchanged.
// Names are not required to be unique; name lookups resolve to the first unit
// registered under a name.
func (r *Registry) Add(u *Unit) (int, error) {
	if u == nil {
		return -1, errors.NewValidationError("unit cannot be nil", nil)
	}
	if err := ValidateUnit(u); err != nil {
		return -1, err
	}
	if len(r.slots) >= r.capacity {
		return -1, errors.NewCapacityError(
			fmt.Sprintf("registry capacity of %d units reached", r.capacity),
			nil,
		).WithContext("unit", u.Name)
	}

	u.state = StateNotStarted
	u.pid = 0

	index := len(r.slots)
	r.slots = append(r.slots, u)
	if _, exists := r.byName[u.Name]; !exists {
		r.byName[u.Name] = index
	}
	return index, nil
}

func (r *Registry) Len() int { return len(r.slots) }

func (r *Registry) Cap() int { return r.capacity }

func (r *Registry) Full() bool { return len(r.slots) >= r.capacity }

// At returns the unit at index i in registration order.
func (r *Registry) At(i int) *Unit { return r.slots[i] }

// Units returns the units in registration order. The slice is a copy; the
// units are not.
func (r *Registry) Units() []*Unit {
	out := make([]*Unit, len(r.slots))
	copy(out, r.slots)
	return out
}

// Lookup finds the first unit registered under name.
func (r *Registry) Lookup(name string) (*Unit, bool) {
	index, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.slots[index], true
}

// LookupPID finds the running unit owning pid.
func (r *Registry) LookupPID(pid int) (*Unit, bool) {
	index, ok := r.byPID[pid]
	if !ok {
		return nil, false
	}
	return r.slots[index], true
}

// HasSource reports whether a unit loaded from path is registered.
func (r *Registry) HasSource(path string) bool {
	for _, u := range r.slots {
		if u.Source == path {
			return true
		}
	}
	return false
}

func (r *Registry) indexOf(u *Unit) int {
	for i, slot := range r.slots {
		if slot == u {
			return i
		}
	}
	return -1
}

// MarkRunning records a successful spawn.
func (r *Registry) MarkRunning(u *Unit, pid int, at time.Time) error {
	if pid <= 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid process identity: %d", pid), nil).WithContext("unit", u.Name)
	}
	index := r.indexOf(u)
	if index < 0 {
		return errors.NewNotFoundError("unit is not registered", nil).WithContext("unit", u.Name)
	}
	if u.pid > 0 {
		delete(r.byPID, u.pid)
	}
	u.state = StateRunning
	u.pid = pid
	u.starts++
	u.startedAt = at
	r.byPID[pid] = index
	return nil
}

// MarkExited moves a unit to stopped, recording exit and clearing its PID.
func (r *Registry) MarkExited(u *Unit, exit ExitInfo) {
	if u.pid > 0 {
		delete(r.byPID, u.pid)
	}
	u.state = StateStopped
	u.pid = 0
	u.lastExit = &exit
}

// MarkRestarting moves an exited unit back to not-started ahead of a respawn.
func (r *Registry) MarkRestarting(u *Unit) {
	if u.pid > 0 {
		delete(r.byPID, u.pid)
	}
	u.state = StateNotStarted
	u.pid = 0
	u.restarts++
}

// Running returns the units currently recorded as running.
func (r *Registry) Running() []*Unit {
	var out []*Unit
	for _, u := range r.slots {
		if u.Running() {
			out = append(out, u)
		}
	}
	return out
}

// Pending counts units in the not-started state.
func (r *Registry) Pending() int {
	n := 0
	for _, u := range r.slots {
		if u.state == StateNotStarted {
			n++
		}
	}
	return n
}

// Snapshot copies the state of every unit in registration order.
func (r *Registry) Snapshot() []Status {
	out := make([]Status, len(r.slots))
	for i, u := range r.slots {
		out[i] = u.Status()
	}
	return out
}
