package config

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// LogLevel selects how chatty the analysis is.
type LogLevel int

const (
	// ErrLevel logs errors only.
	ErrLevel LogLevel = iota + 1
	// WarnLevel adds warnings.
	WarnLevel
	// InfoLevel adds per-function progress and results.
	InfoLevel
	// DebugLevel adds per-fixpoint detail; still usable on large
	// programs.
	DebugLevel
	// TraceLevel adds per-instruction detail; only for small inputs.
	TraceLevel
)

// LogGroup is a set of leveled loggers sharing one verbosity setting.
type LogGroup struct {
	level LogLevel
	trace *log.Logger
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
}

// NewLogGroup builds a log group at the config's verbosity, writing
// to stderr.
func NewLogGroup(c *Config) *LogGroup {
	return &LogGroup{
		level: LogLevel(c.LogLevel),
		trace: log.New(os.Stderr, "[TRACE] ", log.LstdFlags),
		debug: log.New(os.Stderr, "[DEBUG] ", log.LstdFlags),
		info:  log.New(os.Stderr, color.CyanString("[INFO] "), log.LstdFlags),
		warn:  log.New(os.Stderr, color.YellowString("[WARN] "), log.LstdFlags),
		err:   log.New(os.Stderr, color.RedString("[ERROR] "), log.LstdFlags),
	}
}

// SetAllOutput redirects every logger to the writer.
func (l *LogGroup) SetAllOutput(w io.Writer) {
	l.trace.SetOutput(w)
	l.debug.SetOutput(w)
	l.info.SetOutput(w)
	l.warn.SetOutput(w)
	l.err.SetOutput(w)
}

// SetAllFlags sets the flags of every logger.
func (l *LogGroup) SetAllFlags(x int) {
	l.trace.SetFlags(x)
	l.debug.SetFlags(x)
	l.info.SetFlags(x)
	l.warn.SetFlags(x)
	l.err.SetFlags(x)
}

// Tracef prints at trace level in the manner of Printf.
func (l *LogGroup) Tracef(format string, v ...any) {
	if l.level >= TraceLevel {
		l.trace.Printf(format, v...)
	}
}

// Debugf prints at debug level in the manner of Printf.
func (l *LogGroup) Debugf(format string, v ...any) {
	if l.level >= DebugLevel {
		l.debug.Printf(format, v...)
	}
}

// Infof prints at info level in the manner of Printf.
func (l *LogGroup) Infof(format string, v ...any) {
	if l.level >= InfoLevel {
		l.info.Printf(format, v...)
	}
}

// Warnf prints at warn level in the manner of Printf.
func (l *LogGroup) Warnf(format string, v ...any) {
	if l.level >= WarnLevel {
		l.warn.Printf(format, v...)
	}
}

// Errorf prints at error level in the manner of Printf.
func (l *LogGroup) Errorf(format string, v ...any) {
	if l.level >= ErrLevel {
		l.err.Printf(format, v...)
	}
}
