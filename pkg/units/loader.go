package units

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
)

// HiddenMarker prefixes directory entries the loader skips.
const HiddenMarker = "."

// IsHidden reports whether a unit directory entry is skipped by the loader.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, HiddenMarker)
}

// LoadDir registers every non-hidden regular entry of dir, in name order. No
// failure aborts the scan: unreadable and invalid files are skipped with a
// warning and units beyond capacity are rejected with an error. It returns the
// number of units registered by this call.
func LoadDir(dir string, registry *Registry, logger logging.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warnf("Service directory %s not readable: %v", dir, err)
		return 0
	}

	loaded := 0
	for _, entry := range entries {
		if IsHidden(entry.Name()) {
			continue
		}
		if entry.IsDir() {
			logger.Debugf("Skipping directory in service directory: %s", entry.Name())
			continue
		}
		if _, err := LoadFile(filepath.Join(dir, entry.Name()), registry, logger); err == nil {
			loaded++
		}
	}
	return loaded
}

// LoadFile parses one unit file and registers it, emitting the load event.
func LoadFile(path string, registry *Registry, logger logging.Logger) (*Unit, error) {
	u, err := ParseUnitFile(path)
	if err != nil {
		if errors.IsValidationError(err) {
			logger.Warnf("Invalid service file %s (missing NAME or CMD): %v", path, err)
		} else {
			logger.Warnf("Cannot read service file %s: %v", path, err)
		}
		return nil, err
	}

	duplicate := false
	if _, exists := registry.Lookup(u.Name); exists {
		duplicate = true
	}

	if _, err := registry.Add(u); err != nil {
		if errors.IsCapacityError(err) {
			logger.Errorf("Service capacity reached; cannot load %s from %s", u.Name, path)
		} else {
			logger.Warnf("Rejected service %s from %s: %v", u.Name, path, err)
		}
		return nil, err
	}

	if duplicate {
		logger.Warnf("Duplicate service name %s in %s; dependency lookups resolve to the first definition", u.Name, path)
	}

	after := u.After
	if after == "" {
		after = "(none)"
	}
	logger.Infof("Loaded service: %s cmd='%s' restart=%s after=%s", u.Name, u.Command, u.Restart, after)
	return u, nil
}
