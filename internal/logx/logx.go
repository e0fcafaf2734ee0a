// Package logx provides the leveled logger used by the instancing
// pipeline, built on go.uber.org/zap. It maps the CLI's six-level scheme
// (NONE, ERROR, WARNING, INFO, DEBUG, VERBOSE) onto zap's level type,
// adding a custom VERBOSE level one notch below Debug.
package logx

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is one of the six log levels accepted by --log-level.
type Level int

const (
	None Level = iota
	Error
	Warning
	Info
	Debug
	Verbose
)

// VerboseLevel is the zapcore level used for Verbose; it sits below
// zapcore.DebugLevel so a VERBOSE run also emits every DEBUG line.
const VerboseLevel = zapcore.Level(-2)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Error:
		return zapcore.ErrorLevel
	case Warning:
		return zapcore.WarnLevel
	case Info:
		return zapcore.InfoLevel
	case Debug:
		return zapcore.DebugLevel
	case Verbose:
		return VerboseLevel
	default:
		return zapcore.InvalidLevel
	}
}

// ParseLevel converts the CLI's level name into a Level. Unknown names
// fall back to Info, matching the default in spec.md §6.
func ParseLevel(name string) Level {
	switch name {
	case "NONE":
		return None
	case "ERROR":
		return Error
	case "WARNING":
		return Warning
	case "INFO":
		return Info
	case "DEBUG":
		return Debug
	case "VERBOSE":
		return Verbose
	default:
		return Info
	}
}

// Logger wraps a *zap.SugaredLogger; the zero value is not usable, use New.
type Logger struct {
	sugar *zap.SugaredLogger
	level Level
}

// New builds a Logger that writes every enabled level to stdout through a
// single console core, configured once and reused for every call — unlike
// the teacher's Logger wrapper (pack/wad/mesh/logger.go), which wraps an
// io.Writer directly. Level None yields a no-op logger.
func New(level Level) *Logger {
	if level == None {
		return &Logger{sugar: zap.NewNop().Sugar(), level: level}
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:      "time",
		LevelKey:     "level",
		MessageKey:   "msg",
		EncodeTime:   zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:  levelEncoder,
		LineEnding:   zapcore.DefaultLineEnding,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level.zapLevel()
		}),
	)
	return &Logger{sugar: zap.New(core).Sugar(), level: level}
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == VerboseLevel {
		enc.AppendString("VERBOSE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Verbosef logs below Debug; zap has no built-in level there so we check
// manually and emit through the core's generic log entry.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if l.level < Verbose {
		return
	}
	ce := l.sugar.Desugar().Check(VerboseLevel, fmt.Sprintf(format, args...))
	if ce != nil {
		ce.Write()
	}
}

// Sync flushes any buffered log entries; call it once at process exit.
func (l *Logger) Sync() { _ = l.sugar.Sync() }
