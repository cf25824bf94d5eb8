// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const serviceName = "fieldfix"

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Configure(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// Configure sets the output and level and installs the JSON formatter.
func Configure(out io.Writer, level string) {
	Logger.SetOutput(out)
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	SetLevel(level)
}

// SetLevel sets the log level by name. Unknown or empty names mean info.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil || strings.TrimSpace(level) == "" {
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)
}

// Component returns an entry tagged with the service and component names
func Component(name string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"service":   serviceName,
		"component": name,
	})
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
