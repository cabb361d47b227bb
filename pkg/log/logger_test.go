package log

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSharedSingleton(t *testing.T) {
	first := Shared()
	second := Shared()

	if first != second {
		t.Fatalf("expected singleton logger instance")
	}

	if err := Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
}

func TestNewConfig(t *testing.T) {
	cfg, err := newConfig("", "")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Encoding != "json" || cfg.Level.Level() != zapcore.InfoLevel {
		t.Fatalf("unexpected defaults: encoding=%s level=%s", cfg.Encoding, cfg.Level.Level())
	}

	cfg, err = newConfig("debug", "console")
	if err != nil {
		t.Fatalf("debug console: %v", err)
	}
	if cfg.Encoding != "console" || cfg.Level.Level() != zapcore.DebugLevel {
		t.Fatalf("unexpected config: encoding=%s level=%s", cfg.Encoding, cfg.Level.Level())
	}

	if _, err := newConfig("loud", ""); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := newConfig("", "xml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestNopAndNamedLoggers(t *testing.T) {
	var l Logger = Nop()
	l.Infow("discarded", "key", "value")
	l.Errorw("discarded", "key", "value")

	named := Named("apitest")
	if named == nil {
		t.Fatalf("expected named logger")
	}
	named.Debugw("named logger works")
}
