// Package config loads the init configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/statefile"
	"github.com/core-tools/hsu-init/pkg/supervisor"
	"github.com/core-tools/hsu-init/pkg/units"
)

const (
	DefaultConfigFile  = "/init/config/init.yaml"
	DefaultServicesDir = "/init/config/services"
	DefaultModulesList = "/init/config/modules.list"
	DefaultLogFile     = "/init/logs/init.log"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"

	// Disabled turns off an optional path such as state_file or
	// control_socket.
	Disabled = "off"
)

// InitConfig represents the top-level configuration file structure
type InitConfig struct {
	Init   InitConfigOptions `yaml:"init"`
	Mounts []MountConfig     `yaml:"mounts,omitempty"`
}

// InitConfigOptions represents supervisor-level configuration
type InitConfigOptions struct {
	ServicesDir        string        `yaml:"services_dir,omitempty"`
	ModulesList        string        `yaml:"modules_list,omitempty"`
	LogFile            string        `yaml:"log_file,omitempty"`
	LogLevel           string        `yaml:"log_level,omitempty"`
	LogFormat          string        `yaml:"log_format,omitempty"`
	Capacity           int           `yaml:"capacity,omitempty"`
	PollInterval       time.Duration `yaml:"poll_interval,omitempty"`
	GracePeriod        time.Duration `yaml:"grace_period,omitempty"`
	SpawnRetryInterval time.Duration `yaml:"spawn_retry_interval,omitempty"`
	WatchServices      bool          `yaml:"watch_services,omitempty"`
	StateFile          string        `yaml:"state_file,omitempty"`
	ControlSocket      string        `yaml:"control_socket,omitempty"`
	FinalAction        FinalAction   `yaml:"final_action,omitempty"`
	Shell              string        `yaml:"shell,omitempty"`
	Environment        []string      `yaml:"environment,omitempty"`
}

// Enabled reports whether an optional path setting is switched on.
func Enabled(path string) bool {
	return path != "" && path != Disabled
}

// MountConfig is one filesystem mounted at boot
type MountConfig struct {
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	FSType  string `yaml:"fstype"`
	Options string `yaml:"options,omitempty"`
}

// FinalAction is what pid 1 does once every unit has been stopped
type FinalAction string

const (
	FinalActionExit     FinalAction = "exit"
	FinalActionPoweroff FinalAction = "poweroff"
	FinalActionReboot   FinalAction = "reboot"
)

// DefaultMounts are the pseudo filesystems a minimal system needs
func DefaultMounts() []MountConfig {
	return []MountConfig{
		{Source: "proc", Target: "/proc", FSType: "proc"},
		{Source: "sysfs", Target: "/sys", FSType: "sysfs"},
		{Source: "devtmpfs", Target: "/dev", FSType: "devtmpfs"},
		{Source: "tmpfs", Target: "/run", FSType: "tmpfs", Options: "size=10%"},
	}
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *InitConfig {
	config := &InitConfig{}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads init configuration from a YAML file
func LoadConfigFromFile(filename string) (*InitConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("configuration file not found", err).WithContext("filename", filename)
		}
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config InitConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)
	return &config, nil
}

// LoadConfigOrDefault loads filename, falling back to defaults when it does
// not exist. Any other failure is returned with the defaults.
func LoadConfigOrDefault(filename string) (*InitConfig, bool, error) {
	config, err := LoadConfigFromFile(filename)
	if err == nil {
		return config, true, nil
	}
	if errors.IsNotFoundError(err) {
		return DefaultConfig(), false, nil
	}
	return DefaultConfig(), false, err
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *InitConfig) {
	opts := &config.Init
	if opts.ServicesDir == "" {
		opts.ServicesDir = DefaultServicesDir
	}
	if opts.ModulesList == "" {
		opts.ModulesList = DefaultModulesList
	}
	if opts.LogFile == "" {
		opts.LogFile = DefaultLogFile
	}
	if opts.LogLevel == "" {
		opts.LogLevel = DefaultLogLevel
	}
	if opts.LogFormat == "" {
		opts.LogFormat = DefaultLogFormat
	}
	if opts.Capacity == 0 {
		opts.Capacity = units.DefaultCapacity
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = supervisor.DefaultPollInterval
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = supervisor.DefaultGracePeriod
	}
	if opts.SpawnRetryInterval == 0 {
		opts.SpawnRetryInterval = supervisor.DefaultSpawnRetryInterval
	}
	if opts.StateFile == "" {
		opts.StateFile = statefile.DefaultStatePath()
	}
	if opts.ControlSocket == "" {
		opts.ControlSocket = statefile.DefaultSocketPath()
	}
	if opts.FinalAction == "" {
		opts.FinalAction = FinalActionExit
	}
	if config.Mounts == nil {
		config.Mounts = DefaultMounts()
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *InitConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateInitOptions(&config.Init); err != nil {
		return errors.NewValidationError("invalid init configuration", err)
	}

	if err := validateMounts(config.Mounts); err != nil {
		return errors.NewValidationError("invalid mounts configuration", err)
	}

	return nil
}

func validateInitOptions(opts *InitConfigOptions) error {
	if opts.ServicesDir == "" {
		return errors.NewValidationError("services directory cannot be empty", nil)
	}
	if opts.Capacity < 1 {
		return errors.NewValidationError(
			fmt.Sprintf("invalid capacity: %d", opts.Capacity),
			nil,
		).WithContext("min", 1)
	}

	if err := validateLogLevel(opts.LogLevel); err != nil {
		return err
	}
	switch opts.LogFormat {
	case "console", "json":
	default:
		return errors.NewValidationError(
			fmt.Sprintf("invalid log format: %s", opts.LogFormat),
			nil,
		).WithContext("valid_formats", "console, json")
	}

	for name, d := range map[string]time.Duration{
		"poll interval":        opts.PollInterval,
		"grace period":         opts.GracePeriod,
		"spawn retry interval": opts.SpawnRetryInterval,
	} {
		if err := ValidateTimeout(d, name); err != nil {
			return err
		}
	}

	switch opts.FinalAction {
	case FinalActionExit, FinalActionPoweroff, FinalActionReboot:
	default:
		return errors.NewValidationError(
			fmt.Sprintf("invalid final action: %s", opts.FinalAction),
			nil,
		).WithContext("valid_actions", "exit, poweroff, reboot")
	}

	return nil
}

func validateLogLevel(level string) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLogLevels {
		if level == valid {
			return nil
		}
	}
	return errors.NewValidationError(
		fmt.Sprintf("invalid log level: %s", level),
		nil,
	).WithContext("valid_levels", "debug, info, warn, error")
}

func validateMounts(mounts []MountConfig) error {
	seenTargets := make(map[string]int)
	for i, m := range mounts {
		if m.Target == "" || m.FSType == "" {
			return errors.NewValidationError(
				fmt.Sprintf("mount at index %d needs target and fstype", i),
				nil,
			).WithContext("source", m.Source)
		}
		if prevIndex, exists := seenTargets[m.Target]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate mount target '%s' found at indices %d and %d", m.Target, prevIndex, i),
				nil,
			)
		}
		seenTargets[m.Target] = i
	}
	return nil
}

// ValidateTimeout validates timeout duration
func ValidateTimeout(timeout time.Duration, name string) error {
	if timeout < 0 {
		return errors.NewValidationError(name+" cannot be negative", nil)
	}
	if timeout == 0 {
		return errors.NewValidationError(name+" cannot be zero", nil)
	}
	return nil
}
