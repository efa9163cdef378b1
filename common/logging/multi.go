package logging

import "github.com/go-kit/log"

// multiLogger fans a single Log call out to multiple underlying loggers.
type multiLogger struct {
	loggers []log.Logger
}

func (m *multiLogger) Log(keyvals ...interface{}) error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Log(keyvals...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewMultiLogger creates a Logger that writes every log line to each of
// the given loggers in turn.
func NewMultiLogger(loggers ...*Logger) *Logger {
	subs := make([]log.Logger, len(loggers))
	var module string
	for i, l := range loggers {
		subs[i] = l.logger
		if module == "" {
			module = l.module
		}
	}
	if module != "" {
		return &Logger{logger: log.WithPrefix(&multiLogger{loggers: subs}, "module", module), module: module}
	}
	return &Logger{logger: &multiLogger{loggers: subs}}
}
