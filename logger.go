package resocket

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerLevel int

const (
	LogDebug   LoggerLevel = 0
	LogInfo    LoggerLevel = 1
	LogWarning LoggerLevel = 2
	LogError   LoggerLevel = 3
)

type Logger interface {
	Print(level LoggerLevel, kind string, v ...any)
	Println(level LoggerLevel, kind string, v ...any)
	Printf(level LoggerLevel, kind string, format string, v ...any)
}

// NoopLogger is a logger that does nothing
type NoopLogger int

func NewNoopLogger() *NoopLogger {
	return new(NoopLogger)
}

func (l *NoopLogger) Print(_ LoggerLevel, _ string, _ ...any)            {}
func (l *NoopLogger) Println(_ LoggerLevel, _ string, _ ...any)          {}
func (l *NoopLogger) Printf(_ LoggerLevel, _ string, _ string, _ ...any) {}

// ZapLogger is a logger that writes to the given zap.Logger if the message is >= logLevel.
// The kind is attached as a "kind" field.
type ZapLogger struct {
	logLevel LoggerLevel
	logger   *zap.Logger
}

// NewZapLogger wraps logger, dropping messages below level.
func NewZapLogger(level LoggerLevel, logger *zap.Logger) *ZapLogger {
	return &ZapLogger{
		logLevel: level,
		logger:   logger,
	}
}

func (l *ZapLogger) zapLevel(level LoggerLevel) zapcore.Level {
	switch level {
	case LogDebug:
		return zapcore.DebugLevel
	case LogInfo:
		return zapcore.InfoLevel
	case LogWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func (l *ZapLogger) write(level LoggerLevel, kind string, msg string) {
	if level < l.logLevel {
		return
	}
	if ce := l.logger.Check(l.zapLevel(level), msg); ce != nil {
		ce.Write(zap.String("kind", kind))
	}
}

func (l *ZapLogger) Print(level LoggerLevel, kind string, v ...any) {
	l.write(level, kind, fmt.Sprint(v...))
}

func (l *ZapLogger) Println(level LoggerLevel, kind string, v ...any) {
	msg := fmt.Sprintln(v...)
	l.write(level, kind, msg[:len(msg)-1])
}

func (l *ZapLogger) Printf(level LoggerLevel, kind string, format string, v ...any) {
	l.write(level, kind, fmt.Sprintf(format, v...))
}

// Zap returns the underlying zap.Logger.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.logger
}

// NewSimpleLogger returns a ZapLogger backed by a zap development logger that logs messages at or above the given logLevel
func NewSimpleLogger(logLevel LoggerLevel) *ZapLogger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewZapLogger(logLevel, logger.Named("resocket"))
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = (*NoopLogger)(nil)
	_ Logger = (*ZapLogger)(nil)
)
