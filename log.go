// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Logging. A small leveled Logger interface backed by logrus, since the
// embedding host is expected to bring its own log shipping and the core
// only needs structured, leveled records.

package goahead

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging sink used by a Server. The default, returned by
// newLogger, writes structured fields to stderr at Info level and above.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
}

// logrusLogger adapts *logrus.Entry to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

func newLogger(out io.Writer) Logger {
	l := logrus.New()
	if out != nil {
		l.SetOutput(out)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

// noopLogger discards everything; used in tests that don't want log noise.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any)      {}
func (noopLogger) Infof(string, ...any)       {}
func (noopLogger) Warnf(string, ...any)       {}
func (noopLogger) Errorf(string, ...any)      {}
func (n noopLogger) WithField(string, any) Logger { return n }
