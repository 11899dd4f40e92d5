// Package initd wires configuration, boot steps, the unit registry and the
// supervisor into one run of the init process.
package initd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/core-tools/hsu-init/pkg/boot"
	"github.com/core-tools/hsu-init/pkg/config"
	"github.com/core-tools/hsu-init/pkg/control"
	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/process"
	"github.com/core-tools/hsu-init/pkg/statefile"
	"github.com/core-tools/hsu-init/pkg/supervisor"
	"github.com/core-tools/hsu-init/pkg/units"
)

// RunOptions are the per-invocation switches that are not part of the
// configuration file.
type RunOptions struct {
	// Boot mounts pseudo filesystems and loads kernel modules first.
	Boot bool
	// Subreaper makes the process adopt orphaned descendants when it is not
	// pid 1.
	Subreaper bool
	// HandleSignals turns SIGTERM and SIGINT into a shutdown request.
	HandleSignals bool
}

// Run boots (if asked), loads units, supervises them until a shutdown signal
// or ctx is done, and stops them. Only a failure to start supervising at all
// is returned; everything else is logged.
func Run(ctx context.Context, cfg *config.InitConfig, opts RunOptions, logger logging.Logger) error {
	if cfg == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}
	settings := cfg.Init

	logger.Infof("Init starting, pid: %d, services: %s", os.Getpid(), settings.ServicesDir)

	if opts.Boot {
		runBoot(ctx, cfg, logger)
	}
	if opts.Subreaper {
		if err := process.BecomeSubreaper(); err != nil {
			logger.Warnf("Failed to become child subreaper: %v", err)
		}
	}

	registry := units.NewRegistry(settings.Capacity)
	loaded := units.LoadDir(settings.ServicesDir, registry, logging.WithPrefix(logger, "loader: "))
	logger.Infof("Loaded %d services", loaded)

	sup := supervisor.New(supervisor.Options{
		PollInterval:       settings.PollInterval,
		GracePeriod:        settings.GracePeriod,
		SpawnRetryInterval: settings.SpawnRetryInterval,
	}, registry, supervisor.Dependencies{
		Spawner: process.NewShellSpawner(process.ExecutionConfig{
			Shell:       settings.Shell,
			Environment: settings.Environment,
		}, logger),
	}, logger)

	store := supervisor.NewSnapshotStore()
	sup.AddObserver(store)
	if config.Enabled(settings.StateFile) {
		sup.AddObserver(statefile.NewWriter(settings.StateFile, logger))
	}

	if config.Enabled(settings.ControlSocket) {
		server, err := control.Listen(ctx, settings.ControlSocket, control.NewSnapshotContract(store), logging.WithPrefix(logger, "control: "))
		if err != nil {
			logger.Warnf("Control server disabled: %v", err)
		} else {
			defer server.Close()
		}
	}

	if settings.WatchServices {
		watcher, err := supervisor.WatchUnitDir(ctx, settings.ServicesDir, 0, logging.WithPrefix(logger, "watcher: "))
		if err != nil {
			logger.Warnf("Service directory watch disabled: %v", err)
		} else {
			sup.WatchUnitFiles(watcher.Paths())
			defer watcher.Close()
		}
	}

	if opts.HandleSignals {
		stop := forwardShutdownSignals(sup, logger)
		defer stop()
	}

	logger.Infof("Entering main supervision loop")
	return sup.Run(ctx)
}

func runBoot(ctx context.Context, cfg *config.InitConfig, logger logging.Logger) {
	bootLogger := logging.WithPrefix(logger, "boot: ")

	mounted, err := boot.MountAll(cfg.Mounts, boot.SystemMounter{}, bootLogger)
	if err != nil {
		bootLogger.Warnf("Mounted %d of %d filesystems: %v", mounted, len(cfg.Mounts), err)
	}

	loaded := boot.LoadModules(ctx, cfg.Init.ModulesList, boot.ShellRunner{Shell: cfg.Init.Shell}, bootLogger)
	bootLogger.Infof("Loaded %d kernel modules", loaded)
}

// forwardShutdownSignals requests shutdown on SIGTERM or SIGINT. The returned
// func stops forwarding.
func forwardShutdownSignals(sup *supervisor.Supervisor, logger logging.Logger) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case received := <-sig:
				logger.Infof("Received signal: %v", received)
				sup.RequestShutdown()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// ValidateConfigFile loads and validates a configuration file without running
// anything.
func ValidateConfigFile(configFile string) error {
	cfg, err := config.LoadConfigFromFile(configFile)
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}
	return nil
}
