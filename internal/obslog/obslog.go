// Package obslog builds the structured logger shared by every core
// component. It generalizes a log.Printf-at-edge-transitions habit into
// zap, and implements the DEBUG trace gate from spec.md §6: when
// disabled, the per-event printouts cost nothing because zap's level check
// short-circuits before any argument is formatted.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger. When debug is true, Debug-level events (the
// per-event trace printouts §6 describes) are emitted; otherwise only Info
// and above are.
func New(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// zap's production config is validated internally; a build error
		// here means the process environment itself is broken (e.g. stderr
		// unwritable). Fall back to a no-op logger rather than panic on a
		// logging-subsystem failure.
		return zap.NewNop()
	}
	return logger
}
