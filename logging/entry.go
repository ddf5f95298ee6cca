package logging

import "time"

// LogEntry is one diagnostic record before formatting.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Component string
	Action    string
	Message   string
	Fields    Fields
	Error     string
	ErrorType string
	TraceID   string
}
