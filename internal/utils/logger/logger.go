package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the process-wide logger at the given level and returns a
// function that flushes buffered entries.
func Init(levelStr string) (func(), error) {
	lvl, err := ParseLevel(levelStr)
	if err != nil {
		return func() {}, err
	}
	level.SetLevel(lvl)

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeCaller = nil

	z, err := cfg.Build()
	if err != nil {
		return func() {}, fmt.Errorf("building logger: %w", err)
	}
	global = z.Sugar()
	return func() { _ = global.Sync() }, nil
}

// Logger returns the process-wide logger. Before Init it is a no-op logger.
func Logger() *zap.SugaredLogger {
	if global == nil {
		return zap.NewNop().Sugar()
	}
	return global
}

// SetLogLevel changes the level of the logger returned by Logger.
func SetLogLevel(levelStr string) error {
	lvl, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level reports the current level name.
func Level() string {
	return level.Level().String()
}

// ParseLevel maps debug/info/warn/error to a zap level; empty means info.
func ParseLevel(levelStr string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", levelStr)
	}
}
