// Package htslog is the process-wide logger, a thin printf-style wrapper over
// logrus.
package htslog

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// Configure sets the level ("debug", "info", ...) and output format ("json"
// or "text"). An unknown level leaves the current one in place.
func Configure(level string, format string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else if level != "" {
		logger.Warnf("unknown log level %q, keeping %s", level, logger.GetLevel())
	}
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Logger exposes the underlying logger for libraries that want one.
func Logger() *logrus.Logger {
	return logger
}

// WithRequest returns an entry tagged with a request id.
func WithRequest(id string) *logrus.Entry {
	return logger.WithField("request", id)
}

func Debug(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}
