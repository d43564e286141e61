// internal/logger/logger.go
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger wraps the standard logger with service context
type Logger struct {
	service string
	logger  *log.Logger
}

// New creates a new logger instance for a service
func New(service string) *Logger {
	return &Logger{
		service: service,
		logger:  log.New(os.Stdout, "["+service+"] ", log.LstdFlags),
	}
}

// Info logs an info message
func (l *Logger) Info(message string, keyvals ...interface{}) {
	l.logger.Printf("INFO: %s%s", message, formatKeyVals(keyvals...))
}

// Error logs an error message
func (l *Logger) Error(message string, keyvals ...interface{}) {
	l.logger.Printf("ERROR: %s%s", message, formatKeyVals(keyvals...))
}

// Warn logs a warning message
func (l *Logger) Warn(message string, keyvals ...interface{}) {
	l.logger.Printf("WARN: %s%s", message, formatKeyVals(keyvals...))
}

// Debug logs a debug message
func (l *Logger) Debug(message string, keyvals ...interface{}) {
	l.logger.Printf("DEBUG: %s%s", message, formatKeyVals(keyvals...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, keyvals ...interface{}) {
	l.logger.Printf("FATAL: %s%s", message, formatKeyVals(keyvals...))
	os.Exit(1)
}

// Redact replaces every occurrence of the given secrets in message with a
// mask, so provider credentials never end up in logs or error reports.
func Redact(message string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		message = strings.ReplaceAll(message, secret, "*****")
	}
	return message
}

// formatKeyVals formats key-value pairs for logging
func formatKeyVals(keyvals ...interface{}) string {
	if len(keyvals) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			result += " " + fmt.Sprint(keyvals[i]) + "=" + fmt.Sprint(keyvals[i+1])
		}
	}
	return result
}
