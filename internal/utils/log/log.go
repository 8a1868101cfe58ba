// Package log is a thin wrapper around zap so call sites don't carry a
// logger instance around.
package log

import (
	"go.uber.org/zap"
)

var logger = zap.Must(zap.NewProduction())

// Disable swaps in a no-op logger. The TUI client uses this so log lines
// don't clobber the terminal.
func Disable() {
	logger = zap.NewNop()
}

func Sync() {
	_ = logger.Sync()
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}
