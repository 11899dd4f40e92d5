// Package statefile persists the unit state snapshot for inspection by tools
// that cannot reach the control socket.
package statefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/units"
)

const DefaultAppName = "hsu-init"

const (
	StateFileName     = "state.yaml"
	ControlSocketName = "control.sock"
)

// Document is the on-disk form of a snapshot.
type Document struct {
	UpdatedAt time.Time      `yaml:"updated_at"`
	PID       int            `yaml:"pid"`
	Units     []units.Status `yaml:"units"`
}

// RuntimeDirectory returns the directory for runtime files: /run/<app> for
// root, $XDG_RUNTIME_DIR/<app> or the temp directory otherwise.
func RuntimeDirectory(appName string) string {
	if appName == "" {
		appName = DefaultAppName
	}
	if os.Geteuid() == 0 {
		if _, err := os.Stat("/run"); err == nil {
			return filepath.Join("/run", appName)
		}
		return filepath.Join("/var/run", appName)
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

func DefaultStatePath() string {
	return filepath.Join(RuntimeDirectory(DefaultAppName), StateFileName)
}

func DefaultSocketPath() string {
	return filepath.Join(RuntimeDirectory(DefaultAppName), ControlSocketName)
}

// Writer writes each published snapshot to a file, replacing it atomically.
type Writer struct {
	path    string
	logger  logging.Logger
	lastErr string
	now     func() time.Time
}

func NewWriter(path string, logger logging.Logger) *Writer {
	return &Writer{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

func (w *Writer) Path() string {
	return w.path
}

// UnitsChanged writes snapshot. Failures are logged once per distinct error.
func (w *Writer) UnitsChanged(snapshot []units.Status) {
	err := w.Write(snapshot)
	if err == nil {
		if w.lastErr != "" {
			w.logger.Infof("State file writable again, path: %s", w.path)
		}
		w.lastErr = ""
		return
	}
	if msg := err.Error(); msg != w.lastErr {
		w.lastErr = msg
		w.logger.Warnf("Failed to write state file, path: %s, error: %v", w.path, err)
	}
}

func (w *Writer) Write(snapshot []units.Status) error {
	if err := ValidateDirectory(w.path); err != nil {
		return err
	}

	doc := Document{
		UpdatedAt: w.now().UTC(),
		PID:       os.Getpid(),
		Units:     snapshot,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.NewInternalError("failed to encode state", err).WithContext("state_file", w.path)
	}

	if err := renameio.WriteFile(w.path, data, 0644); err != nil {
		return errors.NewIOError("failed to write state file", err).WithContext("state_file", w.path)
	}
	return nil
}

// Read loads a state file written by Writer.
func Read(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("state file not found", err).WithContext("state_file", path)
		}
		return nil, errors.NewIOError("failed to read state file", err).WithContext("state_file", path)
	}

	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.NewValidationError("invalid state file", err).WithContext("state_file", path)
	}
	return &doc, nil
}

// ValidateDirectory makes sure the parent directory of path exists, creating
// it if needed.
func ValidateDirectory(path string) error {
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.NewIOError("failed to access state directory", err).WithContext("directory", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			if os.IsPermission(err) {
				return errors.NewPermissionError("failed to create state directory", err).WithContext("directory", dir)
			}
			return errors.NewIOError("failed to create state directory", err).WithContext("directory", dir)
		}
		return nil
	}
	if !info.IsDir() {
		return errors.NewValidationError("state file parent is not a directory", nil).WithContext("path", dir)
	}
	return nil
}

// Format renders a snapshot as a fixed-width table.
func Format(statuses []units.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-12s %-8s %-10s %-8s %-8s %s\n", "NAME", "STATE", "PID", "RESTART", "STARTS", "EXIT", "AFTER")
	for _, st := range statuses {
		pid := "-"
		if st.PID > 0 {
			pid = fmt.Sprintf("%d", st.PID)
		}
		exit := "-"
		if st.LastExitCode != nil {
			exit = fmt.Sprintf("%d", *st.LastExitCode)
		}
		after := st.After
		if after == "" {
			after = "-"
		}
		fmt.Fprintf(&b, "%-20s %-12s %-8s %-10s %-8d %-8s %s\n", st.Name, st.State, pid, st.Restart, st.Starts, exit, after)
	}
	return b.String()
}
