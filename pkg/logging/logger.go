// Package logging предоставляет структурированный логгер для ядра коммутатора,
// медиа подсистемы и модулей эндпоинтов.
//
// Интерфейс повторяет форму StructuredLogger: уровни с context.Context,
// контекстные логгеры по компонентам и типизированные поля. Запись выполняется
// через zerolog (JSON или консольный формат).
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level уровни логирования
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel разбирает имя уровня ("debug", "INFO", ...)
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for lvl, n := range levelNames {
		if n == name {
			return lvl, nil
		}
	}
	if name == "warning" {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("неизвестный уровень логирования: %q", s)
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger интерфейс для структурированного логирования
type Logger interface {
	Trace(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// LogError логирует ошибку вместе с ее кодом, если ошибка его предоставляет
	LogError(ctx context.Context, err error, msg string, fields ...Field)

	WithComponent(component string) Logger
	WithFields(fields ...Field) Logger

	IsEnabled(level Level) bool
}

// Field представляет поле лога
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Int64(key string, value int64) Field            { return Field{key, value} }
func Uint64(key string, value uint64) Field          { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Any(key string, value interface{}) Field        { return Field{key, value} }
func Err(err error) Field                            { return Field{"error", err} }

// Coded реализуют ошибки, несущие собственный код (статус ядра, код медиа ошибки)
type Coded interface {
	ErrorCode() string
}

// Format формат вывода
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config конфигурация логгера
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: os.Stdout,
	}
}

// ZeroLogger реализация Logger поверх zerolog
type ZeroLogger struct {
	zl    zerolog.Logger
	level Level
}

var _ Logger = (*ZeroLogger)(nil)

// New создает логгер по конфигурации
func New(cfg Config) *ZeroLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl, level: cfg.Level}
}

// Nop возвращает логгер, который ничего не пишет
func Nop() *ZeroLogger {
	return &ZeroLogger{zl: zerolog.Nop(), level: LevelError + 1}
}

func (l *ZeroLogger) IsEnabled(level Level) bool {
	return level >= l.level
}

func (l *ZeroLogger) WithComponent(component string) Logger {
	return &ZeroLogger{
		zl:    l.zl.With().Str("component", component).Logger(),
		level: l.level,
	}
}

func (l *ZeroLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &ZeroLogger{
		zl:    l.zl.With().Fields(toMap(fields)).Logger(),
		level: l.level,
	}
}

func (l *ZeroLogger) Trace(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Trace(), msg, fields)
}

func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Debug(), msg, fields)
}

func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Info(), msg, fields)
}

func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Warn(), msg, fields)
}

func (l *ZeroLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Error(), msg, fields)
}

// LogError логирует ошибку с дополнительной информацией
func (l *ZeroLogger) LogError(ctx context.Context, err error, msg string, fields ...Field) {
	if err == nil {
		l.Error(ctx, msg, fields...)
		return
	}

	errorFields := append(fields, Err(err))
	var coded Coded
	if errors.As(err, &coded) {
		errorFields = append(errorFields, String("error_code", coded.ErrorCode()))
	}
	l.log(ctx, l.zl.Error(), msg, errorFields)
}

func (l *ZeroLogger) log(ctx context.Context, ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range contextFields(ctx) {
		addField(ev, f)
	}
	for _, f := range fields {
		addField(ev, f)
	}
	ev.Msg(msg)
}

func addField(ev *zerolog.Event, f Field) {
	switch v := f.Value.(type) {
	case string:
		ev.Str(f.Key, v)
	case int:
		ev.Int(f.Key, v)
	case int64:
		ev.Int64(f.Key, v)
	case uint64:
		ev.Uint64(f.Key, v)
	case bool:
		ev.Bool(f.Key, v)
	case time.Duration:
		ev.Dur(f.Key, v)
	case error:
		ev.AnErr(f.Key, v)
	case fmt.Stringer:
		ev.Stringer(f.Key, v)
	default:
		ev.Interface(f.Key, v)
	}
}

func toMap(fields []Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if s, ok := f.Value.(fmt.Stringer); ok {
			m[f.Key] = s.String()
			continue
		}
		m[f.Key] = f.Value
	}
	return m
}

type ctxFieldsKey struct{}

// ContextWithFields добавляет поля к контексту; они попадут в каждую запись,
// сделанную с этим контекстом (например uuid сессии)
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing := contextFields(ctx)
	merged := make([]Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxFieldsKey{}).([]Field)
	return fields
}
