package units

import (
	"time"
)

// RestartPolicy decides whether a unit is respawned after its process exits.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// ParseRestartPolicy maps the RESTART value of a unit file to a policy.
// Anything unrecognized, including the empty string, means never.
func ParseRestartPolicy(value string) RestartPolicy {
	switch value {
	case "always":
		return RestartAlways
	case "on-failure":
		return RestartOnFailure
	default:
		return RestartNever
	}
}

// ShouldRestart applies the policy to a normalized exit code.
func (p RestartPolicy) ShouldRestart(exitCode int) bool {
	switch p {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return exitCode != 0
	default:
		return false
	}
}

// State is the lifecycle state of a unit.
type State string

const (
	StateNotStarted State = "not-started"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
)

// SignaledExitCode is the normalized exit code of a process killed by a signal.
const SignaledExitCode = -1

// ExitInfo records how a unit's process ended.
type ExitInfo struct {
	PID      int
	Code     int
	Signaled bool
	Signal   int
	At       time.Time
}

// Unit is one service definition plus its supervision state. The state fields
// are only changed through Registry methods, on the control goroutine.
type Unit struct {
	Name    string
	Command string
	Restart RestartPolicy
	After   string
	Source  string

	state     State
	pid       int
	starts    int
	restarts  int
	startedAt time.Time
	lastExit  *ExitInfo
}

func (u *Unit) State() State { return u.state }

// PID is the process identity of the running instance, 0 otherwise.
func (u *Unit) PID() int { return u.pid }

func (u *Unit) Running() bool { return u.state == StateRunning }

// Starts counts successful spawns, including restarts.
func (u *Unit) Starts() int { return u.starts }

// Restarts counts respawns initiated by the restart policy.
func (u *Unit) Restarts() int { return u.restarts }

// HasStarted reports whether the unit was ever spawned successfully.
func (u *Unit) HasStarted() bool { return u.starts > 0 }

func (u *Unit) StartedAt() time.Time { return u.startedAt }

func (u *Unit) LastExit() (ExitInfo, bool) {
	if u.lastExit == nil {
		return ExitInfo{}, false
	}
	return *u.lastExit, true
}

// Status is a detached copy of a unit, safe to hand to other goroutines.
type Status struct {
	Name         string        `yaml:"name"`
	Command      string        `yaml:"command"`
	Restart      RestartPolicy `yaml:"restart"`
	After        string        `yaml:"after,omitempty"`
	State        State         `yaml:"state"`
	PID          int           `yaml:"pid,omitempty"`
	Starts       int           `yaml:"starts"`
	Restarts     int           `yaml:"restarts"`
	StartedAt    time.Time     `yaml:"started_at,omitempty"`
	LastExitCode *int          `yaml:"last_exit_code,omitempty"`
	LastExitAt   time.Time     `yaml:"last_exit_at,omitempty"`
}

func (u *Unit) Status() Status {
	status := Status{
		Name:      u.Name,
		Command:   u.Command,
		Restart:   u.Restart,
		After:     u.After,
		State:     u.state,
		PID:       u.pid,
		Starts:    u.starts,
		Restarts:  u.restarts,
		StartedAt: u.startedAt,
	}
	if u.lastExit != nil {
		code := u.lastExit.Code
		status.LastExitCode = &code
		status.LastExitAt = u.lastExit.At
	}
	return status
}
