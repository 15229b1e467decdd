// Package logging wraps logrus with the handful of structured fields the
// pipeline's stages need (stage name, frame identifier), the same way
// the teacher's logging package wrapped stdlib log with level
// filtering and key/value formatting.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel mirrors logrus.Level so callers configuring this package
// never need to import logrus directly.
type LogLevel = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Format string // "text" (default) or "json"
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration: info level,
// text format, stderr.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo, Format: "text", Output: os.Stderr}
}

// Logger wraps a logrus entry.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a Logger from cfg, falling back to DefaultConfig
// for any zero-valued field.
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := cfg.Level
	if level == 0 {
		level = LevelInfo
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return &Logger{entry: logrus.NewEntry(l)}
}

var (
	defaultLogger *Logger = NewLogger(nil)
)

// Default returns the package-level default logger.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) { defaultLogger = l }

// WithStage returns a child Logger tagging every message with the
// pipeline stage that produced it (write, read_join, post, callback).
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{entry: l.entry.WithField("stage", stage)}
}

// WithFrame returns a child Logger tagging every message with a
// submission's camera and frame identifiers.
func (l *Logger) WithFrame(cameraID uint32, frameID uint64) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields{
		"camera_id": cameraID,
		"frame_id":  frameID,
	})}
}

// WithField returns a child Logger with one extra structured field,
// e.g. "iteration" or "error".
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...any)  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...any) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
