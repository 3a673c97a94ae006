// Package gemlog defines the logging sink the driver injects into every
// component, and a default logrus-backed implementation. The core never
// imports a concrete logging backend directly; application code may supply
// its own Logger to route events into whatever observability stack it uses.
package gemlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging sink injected into HSMS and GEM
// components. Implementations must be safe for concurrent use.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Nop is a Logger that discards everything. Useful in tests.
type Nop struct{}

func (Nop) Debugf(string, ...interface{})            {}
func (Nop) Infof(string, ...interface{})             {}
func (Nop) Warnf(string, ...interface{})             {}
func (Nop) Errorf(string, ...interface{})            {}
func (n Nop) WithField(string, interface{}) Logger   { return n }
func (n Nop) WithFields(map[string]interface{}) Logger { return n }

// logrusLogger adapts *logrus.Entry to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

// New creates a Logger backed by logrus, writing to w at the given level.
// A nil w defaults to os.Stderr.
func New(w io.Writer, level logrus.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
