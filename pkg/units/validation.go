package units

import (
	"github.com/core-tools/hsu-init/pkg/errors"
)

// ValidateUnit checks the fields a unit cannot run without.
func ValidateUnit(u *Unit) error {
	if u.Name == "" {
		return errors.NewValidationError("unit is missing NAME", nil).WithContext("source", u.Source)
	}
	if u.Command == "" {
		return errors.NewValidationError("unit is missing CMD", nil).WithContext("unit", u.Name).WithContext("source", u.Source)
	}
	switch u.Restart {
	case RestartNever, RestartOnFailure, RestartAlways:
	default:
		return errors.NewValidationError("unsupported restart policy: "+string(u.Restart), nil).
			WithContext("unit", u.Name).
			WithContext("supported_policies", "never, on-failure, always")
	}
	return nil
}
