package redistmpl

import (
	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a logrus logger to Logger
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger returns a Logger writing through l. A nil l uses the logrus
// standard logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (ll *logrusLogger) Debug(msg string, fields ...Field) {
	ll.with(fields).Debug(msg)
}

func (ll *logrusLogger) Info(msg string, fields ...Field) {
	ll.with(fields).Info(msg)
}

func (ll *logrusLogger) Error(msg string, fields ...Field) {
	ll.with(fields).Error(msg)
}

func (ll *logrusLogger) with(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return ll.entry
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = f.Value
	}
	return ll.entry.WithFields(lf)
}

// Fields converts alternating key/value pairs to fields. Pairs whose key is
// not a string are dropped.
func Fields(kv ...interface{}) []Field {
	result := make([]Field, 0, len(kv)/2)
	for i := 0; i < len(kv)-1; i += 2 {
		if key, ok := kv[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: kv[i+1],
			})
		}
	}
	return result
}
