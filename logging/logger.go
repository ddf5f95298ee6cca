// Package logging is the process diagnostics logger. It writes to stderr by
// default and is kept separate from the application log files so a failing
// log directory stays visible to operators.
package logging

import (
	"io"
	"os"
	"sync"
	"time"
)

type Logger interface {
	Debug(component, action, msg string)
	Info(component, action, msg string)
	Warn(component, action, msg string)
	Error(component, action, msg string)
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	WithTraceID(traceID string) Logger
}

type LoggerConfig struct {
	Output    io.Writer
	Formatter Formatter
	Level     LogLevel
	Sanitize  bool
}

// sink is shared by a logger and every child derived from it.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

type StandardLogger struct {
	sink      *sink
	formatter Formatter
	level     LogLevel
	fields    Fields
	traceID   string
	sanitize  bool
	err       string
	errType   string
	now       func() time.Time
}

func NewLogger(cfg LoggerConfig) *StandardLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	formatter := cfg.Formatter
	if formatter == nil {
		formatter = NewHumanFormatter(out)
	}
	return &StandardLogger{
		sink:      &sink{out: out},
		formatter: formatter,
		level:     cfg.Level,
		sanitize:  cfg.Sanitize,
		now:       time.Now,
	}
}

// NewStderrLogger builds the logger used by the command line entry point.
func NewStderrLogger(level, format string) *StandardLogger {
	return NewLogger(LoggerConfig{
		Output:    os.Stderr,
		Formatter: NewFormatter(format, os.Stderr),
		Level:     ParseLevel(level),
		Sanitize:  true,
	})
}

func (l *StandardLogger) log(level LogLevel, component, action, msg string) {
	if !level.ShouldLog(l.level) {
		return
	}

	fields := l.fields
	if l.sanitize {
		fields = fields.Sanitize()
	}

	data, err := l.formatter.Format(LogEntry{
		Timestamp: l.now(),
		Level:     level,
		Component: component,
		Action:    action,
		Message:   msg,
		Fields:    fields,
		Error:     l.err,
		ErrorType: l.errType,
		TraceID:   l.traceID,
	})
	if err != nil {
		return
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.out.Write(data)
}

func (l *StandardLogger) Debug(component, action, msg string) { l.log(DEBUG, component, action, msg) }
func (l *StandardLogger) Info(component, action, msg string)  { l.log(INFO, component, action, msg) }
func (l *StandardLogger) Warn(component, action, msg string)  { l.log(WARN, component, action, msg) }
func (l *StandardLogger) Error(component, action, msg string) { l.log(ERROR, component, action, msg) }

func (l *StandardLogger) clone() *StandardLogger {
	c := *l
	return &c
}

func (l *StandardLogger) WithFields(fields Fields) Logger {
	c := l.clone()
	c.fields = l.fields.Merge(fields)
	return c
}

func (l *StandardLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	c := l.clone()
	c.err = err.Error()
	c.errType = ErrorType(err)
	return c
}

func (l *StandardLogger) WithTraceID(traceID string) Logger {
	c := l.clone()
	c.traceID = traceID
	return c
}

type NopLogger struct{}

func (NopLogger) Debug(component, action, msg string) {}
func (NopLogger) Info(component, action, msg string)  {}
func (NopLogger) Warn(component, action, msg string)  {}
func (NopLogger) Error(component, action, msg string) {}
func (n NopLogger) WithFields(Fields) Logger          { return n }
func (n NopLogger) WithError(error) Logger            { return n }
func (n NopLogger) WithTraceID(string) Logger         { return n }
