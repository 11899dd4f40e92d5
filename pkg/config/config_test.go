package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "init.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(*testing.T, *InitConfig)
	}{
		{
			name: "full config",
			configYAML: `
init:
  services_dir: /etc/services
  modules_list: /etc/modules
  log_file: stdout
  log_level: debug
  log_format: json
  capacity: 16
  poll_interval: 250ms
  grace_period: 3s
  spawn_retry_interval: 10s
  watch_services: true
  state_file: /run/init/state.yaml
  control_socket: /run/init/control.sock
  final_action: reboot
  environment:
    - PATH=/usr/bin:/bin
mounts:
  - source: proc
    target: /proc
    fstype: proc
`,
			validate: func(t *testing.T, c *InitConfig) {
				assert.Equal(t, "/etc/services", c.Init.ServicesDir)
				assert.Equal(t, "/etc/modules", c.Init.ModulesList)
				assert.Equal(t, "stdout", c.Init.LogFile)
				assert.Equal(t, "debug", c.Init.LogLevel)
				assert.Equal(t, "json", c.Init.LogFormat)
				assert.Equal(t, 16, c.Init.Capacity)
				assert.Equal(t, 250*time.Millisecond, c.Init.PollInterval)
				assert.Equal(t, 3*time.Second, c.Init.GracePeriod)
				assert.Equal(t, 10*time.Second, c.Init.SpawnRetryInterval)
				assert.True(t, c.Init.WatchServices)
				assert.Equal(t, FinalActionReboot, c.Init.FinalAction)
				assert.Equal(t, []string{"PATH=/usr/bin:/bin"}, c.Init.Environment)
				require.Len(t, c.Mounts, 1)
				assert.Equal(t, "/proc", c.Mounts[0].Target)
			},
		},
		{
			name:       "empty document gets defaults",
			configYAML: "init: {}\n",
			validate: func(t *testing.T, c *InitConfig) {
				assert.Equal(t, DefaultServicesDir, c.Init.ServicesDir)
				assert.Equal(t, DefaultModulesList, c.Init.ModulesList)
				assert.Equal(t, DefaultLogFile, c.Init.LogFile)
				assert.Equal(t, DefaultLogLevel, c.Init.LogLevel)
				assert.Equal(t, 64, c.Init.Capacity)
				assert.Equal(t, supervisor.DefaultPollInterval, c.Init.PollInterval)
				assert.Equal(t, supervisor.DefaultGracePeriod, c.Init.GracePeriod)
				assert.Equal(t, supervisor.DefaultSpawnRetryInterval, c.Init.SpawnRetryInterval)
				assert.Equal(t, FinalActionExit, c.Init.FinalAction)
				assert.Equal(t, DefaultMounts(), c.Mounts)
			},
		},
		{
			name:       "explicit empty mount list is kept",
			configYAML: "mounts: []\n",
			validate: func(t *testing.T, c *InitConfig) {
				assert.NotNil(t, c.Mounts)
				assert.Empty(t, c.Mounts)
			},
		},
		{
			name:        "malformed yaml",
			configYAML:  "init: [not a map",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.configYAML)

			config, err := LoadConfigFromFile(path)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			tt.validate(t, config)
			assert.NoError(t, ValidateConfig(config))
		})
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	config, found, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultConfig(), config)

	path := writeConfig(t, "init:\n  capacity: 8\n")
	config, found, err = LoadConfigOrDefault(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 8, config.Init.Capacity)

	bad := writeConfig(t, "init: [")
	config, found, err = LoadConfigOrDefault(bad)
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultConfig(), config)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InitConfig)
	}{
		{"negative capacity", func(c *InitConfig) { c.Init.Capacity = -1 }},
		{"bad log level", func(c *InitConfig) { c.Init.LogLevel = "verbose" }},
		{"bad log format", func(c *InitConfig) { c.Init.LogFormat = "xml" }},
		{"negative grace period", func(c *InitConfig) { c.Init.GracePeriod = -time.Second }},
		{"bad final action", func(c *InitConfig) { c.Init.FinalAction = "halt" }},
		{"empty services dir", func(c *InitConfig) { c.Init.ServicesDir = "" }},
		{"mount without fstype", func(c *InitConfig) { c.Mounts = []MountConfig{{Source: "x", Target: "/x"}} }},
		{"duplicate mount target", func(c *InitConfig) {
			c.Mounts = []MountConfig{
				{Source: "proc", Target: "/proc", FSType: "proc"},
				{Source: "proc", Target: "/proc", FSType: "proc"},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := ValidateConfig(config)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}

	assert.Error(t, ValidateConfig(nil))
	assert.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestRuntimePathDefaults(t *testing.T) {
	c := DefaultConfig()
	assert.NotEmpty(t, c.Init.StateFile)
	assert.NotEmpty(t, c.Init.ControlSocket)
	assert.True(t, Enabled(c.Init.StateFile))

	path := writeConfig(t, "init:\n  state_file: \"off\"\n  control_socket: \"off\"\n")
	c, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.False(t, Enabled(c.Init.StateFile))
	assert.False(t, Enabled(c.Init.ControlSocket))
}
