// Package log holds the process-wide zap logger.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger = zap.NewNop()

// Get returns the current logger. It is a no-op logger until Set is called.
func Get() *zap.Logger {
	return defaultLogger
}

// Set builds the process logger. An empty path logs to stderr; the Neovim
// host must pass a file because stdout and stdin carry msgpack-rpc.
func Set(debug bool, path string) error {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	output := "stderr"
	if path != "" {
		output = path
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      debug,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{output},
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// Flush syncs buffered log entries.
func Flush() {
	_ = defaultLogger.Sync()
}
