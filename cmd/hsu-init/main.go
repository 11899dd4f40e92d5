package main

import (
	"context"
	"fmt"
	"os"

	"github.com/core-tools/hsu-init/pkg/boot"
	"github.com/core-tools/hsu-init/pkg/config"
	"github.com/core-tools/hsu-init/pkg/initd"
	"github.com/core-tools/hsu-init/pkg/logsink"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" description:"path to the init configuration file" default:"/init/config/init.yaml"`
	ServicesDir string `long:"services-dir" description:"directory of service unit files (overrides config)"`
	LogFile     string `long:"log-file" description:"event log file, or 'stdout' (overrides config)"`
	LogLevel    string `long:"log-level" description:"debug, info, warn or error (overrides config)"`
	Boot        bool   `long:"boot" description:"mount pseudo filesystems and load kernel modules even when not pid 1"`
	Watch       bool   `long:"watch" description:"load service files added to the services directory after start"`
	Check       bool   `long:"check" description:"validate the configuration file and exit"`
}

func main() {
	os.Exit(run())
}

func run() int {
	isPID1 := os.Getpid() == 1

	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		if !isPID1 {
			return 1
		}
		opts = flagOptions{Config: config.DefaultConfigFile}
	}

	if opts.Check {
		if err := initd.ValidateConfigFile(opts.Config); err != nil {
			fmt.Printf("Configuration is invalid: %v\n", err)
			return 1
		}
		fmt.Printf("Configuration %s is valid\n", opts.Config)
		return 0
	}

	cfg, found, loadErr := config.LoadConfigOrDefault(opts.Config)
	applyOverrides(cfg, opts)
	validateErr := config.ValidateConfig(cfg)
	if (loadErr != nil || validateErr != nil) && !isPID1 {
		fmt.Printf("Configuration error: %v\n", firstError(loadErr, validateErr))
		return 1
	}
	if validateErr != nil {
		cfg = config.DefaultConfig()
	}

	sink := logsink.New(logsink.Config{
		Level:  cfg.Init.LogLevel,
		Format: cfg.Init.LogFormat,
		Path:   cfg.Init.LogFile,
	})
	defer sink.Close()
	logger := sink.Logger("")

	if err := sink.Fallback(); err != nil {
		logger.Warnf("Logging to stdout: %v", err)
	}
	if !found {
		logger.Infof("No configuration file at %s, using defaults", opts.Config)
	}
	if err := firstError(loadErr, validateErr); err != nil {
		logger.Errorf("Configuration error, continuing with defaults: %v", err)
	}

	runOptions := initd.RunOptions{
		Boot:          isPID1 || opts.Boot,
		Subreaper:     !isPID1,
		HandleSignals: true,
	}
	if err := initd.Run(context.Background(), cfg, runOptions, logger); err != nil {
		logger.Errorf("Init failed: %v", err)
		if !isPID1 {
			return 1
		}
	}

	if isPID1 {
		logger.Infof("Final action: %s", cfg.Init.FinalAction)
		_ = sink.Sync()
		if err := boot.Halt(cfg.Init.FinalAction); err != nil {
			logger.Errorf("Final action %s failed: %v", cfg.Init.FinalAction, err)
		}
	}

	logger.Infof("Init exiting")
	return 0
}

func applyOverrides(cfg *config.InitConfig, opts flagOptions) {
	if opts.ServicesDir != "" {
		cfg.Init.ServicesDir = opts.ServicesDir
	}
	if opts.LogFile != "" {
		cfg.Init.LogFile = opts.LogFile
	}
	if opts.LogLevel != "" {
		cfg.Init.LogLevel = opts.LogLevel
	}
	if opts.Watch {
		cfg.Init.WatchServices = true
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
