package process

// SignaledExitCode is the normalized code of a process terminated by a signal.
const SignaledExitCode = -1

// ExitEvent is one reaped child.
type ExitEvent struct {
	PID      int
	Code     int
	Signaled bool
	Signal   int
}

// Waiter collects exited children without blocking.
type Waiter interface {
	// Reap returns the next exited child, or ok == false when none is ready.
	Reap() (event ExitEvent, ok bool, err error)
}

// Signaler delivers the two stop signals of the shutdown sequence.
type Signaler interface {
	Terminate(pid int) error
	Kill(pid int) error
}
