// Package util provides shared logging and statistics helpers.
package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Logger writes leveled messages through the pterm default logger, tagging
// each line with its fixed key/value pairs.
type Logger struct {
	kv []any
}

// Scoped returns a Logger that appends kv (alternating keys and values) to
// every line.
func Scoped(kv ...any) *Logger {
	return &Logger{kv: kv}
}

// With returns a child logger carrying both l's pairs and kv.
func (l *Logger) With(kv ...any) *Logger {
	merged := make([]any, 0, len(l.kv)+len(kv))
	merged = append(merged, l.kv...)
	return &Logger{kv: append(merged, kv...)}
}

func (l *Logger) args() [][]pterm.LoggerArgument {
	if l == nil || len(l.kv) == 0 {
		return nil
	}
	return [][]pterm.LoggerArgument{pterm.DefaultLogger.Args(l.kv...)}
}

func (l *Logger) Trace(format string, args ...any) {
	pterm.DefaultLogger.Trace(fmt.Sprintf(format, args...), l.args()...)
}

func (l *Logger) Debug(format string, args ...any) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...), l.args()...)
}

func (l *Logger) Info(format string, args ...any) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...), l.args()...)
}

func (l *Logger) Warn(format string, args ...any) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...), l.args()...)
}

func (l *Logger) Error(format string, args ...any) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...), l.args()...)
}

// Package-level helpers log without extra fields.

var root = &Logger{}

func LogTrace(format string, args ...any) { root.Trace(format, args...) }
func LogDebug(format string, args ...any) { root.Debug(format, args...) }
func LogInfo(format string, args ...any) { root.Info(format, args...) }
func LogSuccess(format string, args ...any) { root.Info(format, args...) }
func LogWarning(format string, args ...any) { root.Warn(format, args...) }
func LogError(format string, args ...any) { root.Error(format, args...) }

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// EnableTrace also shows trace messages, which carry pion's internals.
func EnableTrace() {
	pterm.DefaultLogger.Level = pterm.LogLevelTrace
}
