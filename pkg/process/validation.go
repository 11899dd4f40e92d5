package process

import (
	"strings"

	"github.com/core-tools/hsu-init/pkg/errors"
)

// ValidateCommand checks a shell command line before it is handed to the shell.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.NewValidationError("command cannot be empty", nil)
	}
	if strings.ContainsRune(command, 0) {
		return errors.NewValidationError("command cannot contain NUL bytes", nil)
	}
	return nil
}
