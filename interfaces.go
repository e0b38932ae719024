package redistmpl

import (
	"time"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	// RecordCommand records an executed command. outcome is "ok", "error_reply"
	// or "transport_error".
	RecordCommand(cmd string, outcome string, duration time.Duration)

	// RecordPipelineDepth records the number of pending pipelined replies
	RecordPipelineDepth(depth int)

	// RecordError records a failure by code name
	RecordError(code string)
}

// Command outcomes passed to MetricsCollector.RecordCommand
const (
	OutcomeOK             = "ok"
	OutcomeErrorReply     = "error_reply"
	OutcomeTransportError = "transport_error"
)

type noopMetrics struct{}

func (noopMetrics) RecordCommand(string, string, time.Duration) {}
func (noopMetrics) RecordPipelineDepth(int)                     {}
func (noopMetrics) RecordError(string)                          {}
