package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

type Formatter interface {
	Format(entry LogEntry) ([]byte, error)
}

// NewFormatter picks a formatter by name: "json" or anything else for human output.
func NewFormatter(name string, w io.Writer) Formatter {
	if strings.EqualFold(name, "json") {
		return &JSONFormatter{}
	}
	return NewHumanFormatter(w)
}

type JSONFormatter struct{}

type jsonRecord struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Action    string `json:"action"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func (f *JSONFormatter) Format(entry LogEntry) ([]byte, error) {
	rec := jsonRecord{
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
		Level:     entry.Level.String(),
		Component: entry.Component,
		Action:    entry.Action,
		Message:   entry.Message,
		Fields:    entry.Fields,
		Error:     entry.Error,
		ErrorType: entry.ErrorType,
		TraceID:   entry.TraceID,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return append(data, '\n'), nil
}

type HumanFormatter struct {
	colorEnabled bool
}

func NewHumanFormatter(w io.Writer) *HumanFormatter {
	colorEnabled := false
	if f, ok := w.(*os.File); ok {
		colorEnabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &HumanFormatter{colorEnabled: colorEnabled}
}

func (f *HumanFormatter) Format(entry LogEntry) ([]byte, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s [%s] %s: %s",
		entry.Timestamp.Format("15:04:05"), f.colorLevel(entry.Level),
		entry.Component, entry.Action, entry.Message)

	if len(entry.Fields) > 0 {
		sb.WriteString(" [")
		for i, k := range entry.Fields.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, entry.Fields[k])
		}
		sb.WriteString("]")
	}
	if entry.Error != "" {
		fmt.Fprintf(&sb, " error=%s", entry.Error)
	}
	if entry.ErrorType != "" {
		fmt.Fprintf(&sb, " error_type=%s", entry.ErrorType)
	}
	if entry.TraceID != "" {
		fmt.Fprintf(&sb, " trace_id=%s", entry.TraceID)
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

func (f *HumanFormatter) colorLevel(l LogLevel) string {
	name := fmt.Sprintf("%-5s", strings.ToUpper(l.String()))
	if !f.colorEnabled {
		return name
	}

	var color string
	switch l {
	case DEBUG:
		color = "\033[36m"
	case INFO:
		color = "\033[32m"
	case WARN:
		color = "\033[33m"
	case ERROR:
		color = "\033[31m"
	default:
		return name
	}
	return color + name + "\033[0m"
}
