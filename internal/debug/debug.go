// Package debug carries the process-wide verbosity switches and builds the
// zap logger handed to the store, the engine and the workflow watcher.
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	enabled     = os.Getenv("WPG_DEBUG") != ""
	verboseMode = false
	quietMode   = false
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal writes to w unless quiet mode is enabled.
func PrintNormal(w io.Writer, format string, args ...interface{}) {
	if !quietMode {
		fmt.Fprintf(w, format, args...)
	}
}

// PrintlnNormal writes a line to w unless quiet mode is enabled.
func PrintlnNormal(w io.Writer, args ...interface{}) {
	if !quietMode {
		fmt.Fprintln(w, args...)
	}
}

// Level resolves the effective log level: verbose forces debug, quiet
// forces error, otherwise the configured name is parsed.
func Level(name string) (zapcore.Level, error) {
	switch {
	case Enabled():
		return zapcore.DebugLevel, nil
	case quietMode:
		return zapcore.ErrorLevel, nil
	}
	if name == "" {
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() *zap.Logger { return zap.NewNop() }

// NewLogger builds a logger writing to w in "console" or "json" format.
// Level "none" disables logging unless verbose mode is on.
func NewLogger(format, level string, w zapcore.WriteSyncer) (*zap.Logger, error) {
	if strings.EqualFold(level, "none") && !Enabled() {
		return NewNoopLogger(), nil
	}
	lvl, err := Level(level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	switch format {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (want console or json)", format)
	}

	return zap.New(zapcore.NewCore(enc, w, lvl)), nil
}

// NewStderrLogger is NewLogger on stderr, falling back to a no-op logger
// when the settings are invalid.
func NewStderrLogger(format, level string) *zap.Logger {
	logger, err := NewLogger(format, level, zapcore.Lock(os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return NewNoopLogger()
	}
	return logger
}
