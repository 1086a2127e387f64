// Package logger provides structured logging for the craftbot backend.
//
// A single zap logger is shared process-wide. Its level is an AtomicLevel so
// it can be changed at runtime from the admin endpoint. JSON output is used in
// production and the console encoder in development.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global      *zap.Logger
	atomicLevel zap.AtomicLevel
	once        sync.Once

	extractorsMu sync.RWMutex
	extractors   []FieldExtractor
)

// FieldExtractor pulls log fields out of a request context (request id,
// correlation id, user id). Packages that own such values register one at
// init time so the logger does not import them.
type FieldExtractor func(ctx context.Context) []zap.Field

// Init initializes the global logger.
// level: debug, info, warn, error
// format: json or console
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		atomicLevel = zap.NewAtomicLevel()
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}

		var cfg zap.Config
		switch format {
		case "console":
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		default:
			cfg = zap.NewProductionConfig()
		}
		cfg.Level = atomicLevel

		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = l
	})
	return initErr
}

// SetLevel changes the log level at runtime.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel returns the current log level.
func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// L returns the global logger. Panics if Init has not been called.
func L() *zap.Logger {
	if global == nil {
		panic("logger.Init() must be called before logger.L()")
	}
	return global
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// RegisterExtractor adds a context field extractor used by Ctx.
func RegisterExtractor(fn FieldExtractor) {
	extractorsMu.Lock()
	defer extractorsMu.Unlock()
	extractors = append(extractors, fn)
}

// Ctx returns a child logger carrying every field the registered extractors
// find in ctx.
func Ctx(ctx context.Context) *zap.Logger {
	extractorsMu.RLock()
	defer extractorsMu.RUnlock()

	var fields []zap.Field
	for _, fn := range extractors {
		fields = append(fields, fn(ctx)...)
	}
	if len(fields) == 0 {
		return L()
	}
	return L().With(fields...)
}

// Named returns a child logger for a component (bus, uow, service name).
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Debug logs a message at DebugLevel.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs a message at InfoLevel.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal logs a message at FatalLevel then calls os.Exit(1).
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Level exposes the AtomicLevel; it implements http.Handler for
// GET/PUT level changes.
func Level() *zap.AtomicLevel {
	return &atomicLevel
}

// Sync flushes any buffered log entries.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
