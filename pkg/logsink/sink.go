// Package logsink is the append-only event log of the supervisor: timestamped,
// leveled records written through zap to a locked file, or to stdout when the
// file cannot be used.
package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
)

// Config selects level, encoding and destination of the sink.
type Config struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console", "json"
	Path   string `yaml:"path"`   // empty or "stdout" for standard output
	Caller bool   `yaml:"caller"`
}

func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Path:   "stdout",
	}
}

// Sink owns the zap logger and, for file output, the open file and its lock.
type Sink struct {
	logger   *zap.Logger
	sugar    *zap.SugaredLogger
	file     *os.File
	lock     *flock.Flock
	fallback error
}

// New opens the sink described by config. It never fails: when the log file
// cannot be created or locked the sink writes to stdout and Fallback reports
// why.
func New(config Config) *Sink {
	s := &Sink{}

	var out zapcore.WriteSyncer
	if config.Path == "" || config.Path == "stdout" {
		out = zapcore.Lock(zapcore.AddSync(os.Stdout))
	} else if f, lock, err := openLocked(config.Path); err != nil {
		s.fallback = err
		out = zapcore.Lock(zapcore.AddSync(os.Stdout))
	} else {
		s.file, s.lock = f, lock
		out = zapcore.Lock(zapcore.AddSync(f))
	}

	s.logger = newZapLogger(config, out)
	s.sugar = s.logger.Sugar()
	return s
}

// NewWriterSink writes to w, mostly for tests and for initctl.
func NewWriterSink(config Config, w io.Writer) *Sink {
	logger := newZapLogger(config, zapcore.AddSync(w))
	return &Sink{logger: logger, sugar: logger.Sugar()}
}

func openLocked(path string) (*os.File, *flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, errors.NewIOError("failed to create log directory", err).WithContext("path", path)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, nil, errors.NewIOError("failed to lock log file", err).WithContext("path", path)
	}
	if !locked {
		return nil, nil, errors.NewConflictError("log file is locked by another writer", nil).WithContext("path", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		lock.Unlock()
		return nil, nil, errors.NewIOError("failed to open log file", err).WithContext("path", path)
	}
	return f, lock, nil
}

func newZapLogger(config Config, out zapcore.WriteSyncer) *zap.Logger {
	level, err := getLevelFromString(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.LevelKey = "level"

	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	opts := []zap.Option{}
	if config.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	return zap.New(zapcore.NewCore(encoder, out, level), opts...)
}

// zap v1.20 has no zapcore.ParseLevel.
func getLevelFromString(levelStr string) (zapcore.Level, error) {
	switch levelStr {
	case "debug":
		return zap.DebugLevel, nil
	case "info", "":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return -1, fmt.Errorf("invalid log level: %s", levelStr)
	}
}

// ValidLevel reports whether level is accepted by the sink.
func ValidLevel(level string) bool {
	_, err := getLevelFromString(level)
	return err == nil
}

// Fallback returns the reason file output was abandoned, or nil.
func (s *Sink) Fallback() error {
	return s.fallback
}

// Logger adapts the sink to logging.Logger with the given message prefix.
func (s *Sink) Logger(prefix string) logging.Logger {
	return logging.NewLogger(prefix, logging.LogFuncs{
		Debugf: s.sugar.Debugf,
		Infof:  s.sugar.Infof,
		Warnf:  s.sugar.Warnf,
		Errorf: s.sugar.Errorf,
	})
}

func (s *Sink) Sync() error {
	return s.logger.Sync()
}

// Close flushes the logger and releases the file lock.
func (s *Sink) Close() error {
	_ = s.logger.Sync()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
