// Package logger is the component-tagged logging facade used across the
// bridge. Call sites name their component and pass optional fields; output
// goes through a shared zap logger.
package logger

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = newLogger(level)
)

func newLogger(lvl zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetLevel changes the minimum level for all subsequent log calls.
func SetLevel(l LogLevel) {
	level.SetLevel(toZap(l))
}

func GetLevel() LogLevel {
	switch level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	case zapcore.FatalLevel:
		return FATAL
	default:
		return INFO
	}
}

// ParseLevel maps a config string ("debug", "info", ...) to a LogLevel.
// Unknown values map to INFO.
func ParseLevel(s string) LogLevel {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(s)); err != nil {
		return INFO
	}
	switch zl {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	case zapcore.FatalLevel:
		return FATAL
	default:
		return INFO
	}
}

// SetOutput replaces the underlying zap logger. Tests use it with an
// observer core; passing nil restores the default.
func SetOutput(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		base = newLogger(level)
		return
	}
	base = l.WithOptions(zap.AddCallerSkip(2))
}

func toZap(l LogLevel) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func logMessage(l LogLevel, component, message string, fields map[string]any) {
	mu.RLock()
	lg := base
	mu.RUnlock()

	zl := toZap(l)
	ce := lg.Check(zl, message)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		zf = append(zf, zap.String("component", component))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

func Debug(message string)                                      { logMessage(DEBUG, "", message, nil) }
func DebugC(component, message string)                          { logMessage(DEBUG, component, message, nil) }
func DebugF(message string, fields map[string]any)              { logMessage(DEBUG, "", message, fields) }
func DebugCF(component, message string, fields map[string]any) { logMessage(DEBUG, component, message, fields) }

func Info(message string)                                      { logMessage(INFO, "", message, nil) }
func InfoC(component, message string)                          { logMessage(INFO, component, message, nil) }
func InfoF(message string, fields map[string]any)              { logMessage(INFO, "", message, fields) }
func InfoCF(component, message string, fields map[string]any) { logMessage(INFO, component, message, fields) }

func Warn(message string)                                      { logMessage(WARN, "", message, nil) }
func WarnC(component, message string)                          { logMessage(WARN, component, message, nil) }
func WarnF(message string, fields map[string]any)              { logMessage(WARN, "", message, fields) }
func WarnCF(component, message string, fields map[string]any) { logMessage(WARN, component, message, fields) }

func Error(message string)                                      { logMessage(ERROR, "", message, nil) }
func ErrorC(component, message string)                          { logMessage(ERROR, component, message, nil) }
func ErrorF(message string, fields map[string]any)              { logMessage(ERROR, "", message, fields) }
func ErrorCF(component, message string, fields map[string]any) { logMessage(ERROR, component, message, fields) }

// Sync flushes any buffered log entries.
func Sync() {
	mu.RLock()
	lg := base
	mu.RUnlock()
	_ = lg.Sync()
}
