// Package vfslog provides the library's logging convention: every
// component (a mount, a backend, the visitor) logs through a small
// component-scoped logger rather than a bare package-level logger, the
// same shape as rclone's "fs.Logf(f, format, args...)" helpers which
// always prefix a log line with the remote the message concerns.
package vfslog

import "github.com/sirupsen/logrus"

// Logger is a component-scoped log handle.
type Logger struct {
	entry *logrus.Entry
}

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// For returns a Logger that tags every line with component.
func For(component string) *Logger {
	return &Logger{entry: base.WithField("component", component)}
}

// WithField returns a derived logger carrying one more structured field,
// e.g. the mount prefix or the fake handle an operation concerns.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
