package util

import (
	"github.com/pion/logging"
)

// pionLogger forwards pion's internal logs into the pterm logger, tagged with
// the pion scope (ice, dtls, sctp, ...). pion's info level is chatty, so it is
// demoted to debug.
type pionLogger struct {
	log *Logger
}

// NewPionLoggerFactory returns a logging.LoggerFactory suitable for
// webrtc.SettingEngine.LoggerFactory.
func NewPionLoggerFactory() logging.LoggerFactory {
	return pionLoggerFactory{}
}

type pionLoggerFactory struct{}

func (pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{log: Scoped("pion", scope)}
}

func (l *pionLogger) Trace(msg string) { l.log.Trace("%s", msg) }
func (l *pionLogger) Tracef(format string, args ...any) { l.log.Trace(format, args...) }
func (l *pionLogger) Debug(msg string) { l.log.Debug("%s", msg) }
func (l *pionLogger) Debugf(format string, args ...any) { l.log.Debug(format, args...) }
func (l *pionLogger) Info(msg string) { l.log.Debug("%s", msg) }
func (l *pionLogger) Infof(format string, args ...any) { l.log.Debug(format, args...) }
func (l *pionLogger) Warn(msg string) { l.log.Warn("%s", msg) }
func (l *pionLogger) Warnf(format string, args ...any) { l.log.Warn(format, args...) }
func (l *pionLogger) Error(msg string) { l.log.Error("%s", msg) }
func (l *pionLogger) Errorf(format string, args ...any) { l.log.Error(format, args...) }
