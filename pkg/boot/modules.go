package boot

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/process"
)

// Runner runs a shell command to completion.
type Runner interface {
	Run(ctx context.Context, command string) error
}

// ShellRunner runs commands with "<shell> -c".
type ShellRunner struct {
	Shell string
}

func (r ShellRunner) Run(ctx context.Context, command string) error {
	shell := r.Shell
	if shell == "" {
		shell = process.DefaultShell
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	if err := cmd.Run(); err != nil {
		return errors.NewProcessError("command failed", err).WithContext("command", command)
	}
	return nil
}

// ModuleCommand builds the shell command that loads one module line: modprobe
// first, insmod as the fallback, with errors silenced. Every word of the line
// is quoted.
func ModuleCommand(line string) string {
	fields := strings.Fields(line)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = shellQuote(f)
	}
	args := strings.Join(quoted, " ")
	return "modprobe " + args + " 2>/dev/null || insmod " + args + " 2>/dev/null"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// LoadModules loads each module named in the list file, one per line. Blank
// lines and lines starting with '#' are skipped. A missing list or a module
// that fails to load is a warning. It returns the number of modules loaded.
func LoadModules(ctx context.Context, path string, runner Runner, logger logging.Logger) int {
	logger.Infof("Loading kernel modules from %s", path)

	f, err := os.Open(path)
	if err != nil {
		logger.Warnf("No modules list found at %s", path)
		return 0
	}
	defer f.Close()

	loaded := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimRight(scanner.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ctx.Err() != nil {
			logger.Warnf("Module loading interrupted: %v", ctx.Err())
			break
		}

		logger.Infof("Loading module: %s", line)
		if err := runner.Run(ctx, ModuleCommand(line)); err != nil {
			logger.Warnf("Failed to load module: %s", line)
			continue
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		logger.Warnf("Failed to read modules list %s: %v", path, err)
	}
	return loaded
}
