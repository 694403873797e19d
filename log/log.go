package log

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// wrapper around zap.Logger so callers don't need to import zap themselves

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

type Field = zap.Field

func String(key, val string) Field               { return zap.String(key, val) }
func Int(key string, val int) Field              { return zap.Int(key, val) }
func Int64(key string, val int64) Field          { return zap.Int64(key, val) }
func Uint32(key string, val uint32) Field        { return zap.Uint32(key, val) }
func Bool(key string, val bool) Field            { return zap.Bool(key, val) }
func Time(key string, val time.Time) Field       { return zap.Time(key, val) }
func Duration(key string, v time.Duration) Field { return zap.Duration(key, v) }
func Any(key string, val interface{}) Field      { return zap.Any(key, val) }
func ErrorField(err error) Field                 { return zap.Error(err) }

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

type Logger struct {
	l     *zap.Logger
	level Level
}

func (l *Logger) Debug(msg string, fields ...Field) { l.l.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.l.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.l.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.l.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.l.Fatal(msg, fields...) }

func (l *Logger) Sync() error { return l.l.Sync() }

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

type Option = zap.Option

func WithCaller(enabled bool) Option { return zap.WithCaller(enabled) }
func AddCallerSkip(skip int) Option  { return zap.AddCallerSkip(skip) }

// filterRules holds zapfilter rules applied to loggers created afterwards
// (for example "debug:transport,core info:*").
var filterRules string

// SetFilterRules configures zapfilter rules. Empty string disables filtering.
func SetFilterRules(rules string) {
	filterRules = rules
}

// New creates a Logger with JSON output (production encoding).
func New(writer io.Writer, level Level, opts ...Option) *Logger {
	if writer == nil {
		panic("the writer is nil")
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.AddSync(writer),
		level,
	)
	return newLogger(core, level, opts...)
}

// DevLogger creates a Logger with console output for development.
func DevLogger(writer io.Writer, level Level, opts ...Option) *Logger {
	if writer == nil {
		panic("the writer is nil")
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(writer),
		level,
	)
	return newLogger(core, level, opts...)
}

func newLogger(core zapcore.Core, level Level, opts ...Option) *Logger {
	if filterRules != "" {
		core = zapfilter.NewFilteringCore(core, zapfilter.MustParseRules(filterRules))
	}
	return &Logger{
		l:     zap.New(core, opts...),
		level: level,
	}
}

var (
	std = DevLogger(os.Stderr, InfoLevel)
	mu  sync.Mutex
)

// Default returns the package level logger.
func Default() *Logger { return std }

// ResetDefault replaces the package level logger.
func ResetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

// GetLogger returns a named logger derived from the default.
func GetLogger(name string) *Logger {
	return std.Named(name)
}

func Debug(msg string, fields ...Field) { std.l.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.l.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.l.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.l.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.l.Fatal(msg, fields...) }
