// Package log provides the structured logger shared by the docs host, the
// OpenAPI document service and the contract test tooling.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envLevel  = "LOG_LEVEL"
	envFormat = "LOG_FORMAT"
)

// Logger is the subset of zap's sugared API consumed across the module.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

var (
	initOnce sync.Once
	shared   *zap.SugaredLogger
	flush    = func() error { return nil }
)

// Shared returns the process logger, built on first use from LOG_LEVEL
// (default info) and LOG_FORMAT ("json" or "console", default json).
func Shared() *zap.SugaredLogger {
	initOnce.Do(func() {
		cfg, err := newConfig(os.Getenv(envLevel), os.Getenv(envFormat))
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: %v; using defaults\n", err)
			cfg, _ = newConfig("", "")
		}
		base, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		shared = base.Sugar()
		flush = base.Sync
	})
	return shared
}

func newConfig(level, format string) (zap.Config, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", envLevel, level, err)
		}
		cfg.Level = lvl
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return cfg, fmt.Errorf("invalid %s %q", envFormat, format)
	}
	return cfg, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zap.NewNop().Sugar()
}

// Named returns a child of the shared logger tagged with a component name.
func Named(component string) Logger {
	return Shared().Named(component)
}

// Sync flushes buffered entries. Errors from syncing a terminal or pipe are
// ignored.
func Sync() error {
	err := flush()
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "bad file descriptor") || strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl") {
		return nil
	}
	return err
}
