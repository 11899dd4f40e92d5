package process

import (
	"os"
	"os/exec"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
)

const (
	DefaultShell = "/bin/sh"

	// ExecFailedExitCode is the status a shell exits with when it cannot run
	// the command it was given.
	ExecFailedExitCode = 127
)

// Spawner creates the process for a unit and returns its PID. It does not wait
// for the process: exits are collected by a Waiter.
type Spawner interface {
	Spawn(name, command string) (int, error)
}

// ExecutionConfig describes how unit commands are run.
type ExecutionConfig struct {
	Shell            string   `yaml:"shell,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
}

// ShellSpawner runs each command line through "<shell> -c", so unit commands
// may use quoting, redirection and pipes.
type ShellSpawner struct {
	execution ExecutionConfig
	logger    logging.Logger
}

func NewShellSpawner(execution ExecutionConfig, logger logging.Logger) *ShellSpawner {
	if execution.Shell == "" {
		execution.Shell = DefaultShell
	}
	return &ShellSpawner{
		execution: execution,
		logger:    logger,
	}
}

func (s *ShellSpawner) Spawn(name, command string) (int, error) {
	if err := ValidateCommand(command); err != nil {
		return 0, errors.NewValidationError("invalid command", err).WithContext("unit", name)
	}

	s.logger.Debugf("Executing unit, name: %s, shell: %s, command: '%s'", name, s.execution.Shell, command)

	cmd := exec.Command(s.execution.Shell, "-c", command)
	cmd.Dir = s.execution.WorkingDirectory
	cmd.Env = append(os.Environ(), s.execution.Environment...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		return 0, errors.NewProcessError("failed to start the process", err).
			WithContext("unit", name).
			WithContext("shell", s.execution.Shell)
	}

	pid := cmd.Process.Pid

	// The control loop reaps every child itself with wait4; drop the handle so
	// the runtime holds nothing for this PID.
	if err := cmd.Process.Release(); err != nil {
		s.logger.Debugf("Failed to release process handle, name: %s, pid: %d: %v", name, pid, err)
	}

	return pid, nil
}
