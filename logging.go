package study

import (
	"github.com/sirupsen/logrus"
)

// NewLogrusLogger builds the process logger: JSON output in production,
// text in development, level parsed from configuration with info as the
// fallback.
func NewLogrusLogger(level string, development bool) Logger {
	l := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if development {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return logrusAdapter{l}
}

type logrusAdapter struct {
	l *logrus.Logger
}

func (a logrusAdapter) Debug(format string, args ...any) {
	a.l.Debugf(format, args...)
}

func (a logrusAdapter) Info(format string, args ...any) {
	a.l.Infof(format, args...)
}

func (a logrusAdapter) Error(format string, args ...any) {
	a.l.Errorf(format, args...)
}
