package logging

import "github.com/rs/zerolog"

// InternalLogger is the printf style logger handed to background jobs,
// so their output can be captured next to the process log.
type InternalLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var _ InternalLogger = ZLogger{}

// ZLogger forwards to a zerolog logger.
type ZLogger struct {
	ZLog zerolog.Logger
}

func NewZLogger(zlog zerolog.Logger) ZLogger {
	return ZLogger{ZLog: zlog}
}

func (l ZLogger) Debug(format string, args ...any) { l.ZLog.Debug().Msgf(format, args...) }
func (l ZLogger) Info(format string, args ...any)  { l.ZLog.Info().Msgf(format, args...) }
func (l ZLogger) Warn(format string, args ...any)  { l.ZLog.Warn().Msgf(format, args...) }
func (l ZLogger) Error(format string, args ...any) { l.ZLog.Error().Msgf(format, args...) }

var _ InternalLogger = MultiLogger{}

// MultiLogger fans out to several loggers in order.
type MultiLogger struct {
	Loggers []InternalLogger
}

func NewMultiLogger(loggers ...InternalLogger) MultiLogger {
	return MultiLogger{Loggers: loggers}
}

func (l MultiLogger) Debug(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Debug(format, args...)
	}
}

func (l MultiLogger) Info(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Info(format, args...)
	}
}

func (l MultiLogger) Warn(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Warn(format, args...)
	}
}

func (l MultiLogger) Error(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Error(format, args...)
	}
}
