package units

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/core-tools/hsu-init/pkg/errors"
)

// Recognized unit file keys.
const (
	KeyName    = "NAME"
	KeyCommand = "CMD"
	KeyRestart = "RESTART"
	KeyAfter   = "AFTER"
)

// ParseUnit reads a KEY=value unit definition. Blank lines, lines starting with
// '#', lines without '=' and unknown keys are ignored. Keys match exactly and
// the value is everything after the first '=', spaces included. A unit without NAME or CMD is rejected with a
// validation error.
func ParseUnit(r io.Reader) (*Unit, error) {
	u := &Unit{Restart: RestartNever}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case KeyName:
			u.Name = value
		case KeyCommand:
			u.Command = value
		case KeyRestart:
			u.Restart = ParseRestartPolicy(value)
		case KeyAfter:
			u.After = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError("failed to read unit definition", err)
	}

	if err := ValidateUnit(u); err != nil {
		return nil, err
	}
	return u, nil
}

// ParseUnitFile parses the unit file at path and records path as its source.
// Only regular files (or links to them) are opened; a FIFO would block.
func ParseUnitFile(path string) (*Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIOError("failed to stat unit file", err).WithContext("path", path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.NewIOError("unit file is not a regular file", nil).
			WithContext("path", path).
			WithContext("mode", info.Mode().String())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("failed to open unit file", err).WithContext("path", path)
	}
	defer f.Close()

	u, err := ParseUnit(f)
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("path", path)
		}
		return nil, err
	}
	u.Source = path
	return u, nil
}
