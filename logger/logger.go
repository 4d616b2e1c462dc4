/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is the structured logging façade used by every component of
// the hub: the listener, the client registry, the dispatcher and the
// collaborators all log through this package instead of touching logrus
// directly.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	libatm "github.com/cedarwell/pihubd/atomic"
)

// FuncLog is used for dependency injection: a component takes a FuncLog
// instead of a Logger so the concrete logger can be swapped or lazily built.
type FuncLog func() Logger

// Logger is the logging façade. It never panics or exits the process on its
// own; Fatal/Panic only format and emit the entry, leaving lifecycle
// decisions to the caller.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	SetFields(f Fields)
	GetFields() Fields

	// With returns a derived Logger whose default fields are merged with f.
	// The receiver is left untouched.
	With(f Fields) Logger

	Debug(message string, args ...interface{})
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})
	Fatal(message string, args ...interface{})

	// LogDetails logs message at lvl, merging extra fields and a single
	// optional error into the entry.
	LogDetails(lvl Level, message string, err error, fields Fields, args ...interface{})

	// CheckError logs err at lvlKO and returns false when err is not nil;
	// otherwise, if lvlOK is not NilLevel, it logs message at lvlOK and
	// returns true.
	CheckError(lvlKO, lvlOK Level, message string, err error) bool

	// Output returns an io.Writer that feeds messages into the logger at
	// the given level. Useful for wiring into log.Logger or net clients
	// that only know how to write bytes.
	Output(lvl Level) io.Writer
}

type lgr struct {
	mu  sync.RWMutex
	lvl libatm.Value[Level]
	fld Fields
	log *logrus.Logger
}

// New returns a Logger writing key=value text entries to stderr at InfoLevel.
func New() Logger {
	l := &lgr{
		lvl: libatm.NewValue[Level](),
		fld: NewFields(),
		log: logrus.New(),
	}

	l.log.SetOutput(os.Stderr)
	l.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(InfoLevel)

	return l
}

func (l *lgr) SetLevel(lvl Level) {
	l.lvl.Store(lvl)
	l.log.SetLevel(lvl.Logrus())
}

func (l *lgr) GetLevel() Level {
	return l.lvl.Load()
}

func (l *lgr) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fld = f
}

func (l *lgr) GetFields() Fields {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fld
}

func (l *lgr) With(f Fields) Logger {
	n := &lgr{
		lvl: libatm.NewValue[Level](),
		fld: l.GetFields().Merge(f),
		log: l.log,
	}
	n.lvl.Store(l.GetLevel())
	return n
}

func (l *lgr) entry(fields Fields) *logrus.Entry {
	return l.log.WithFields(l.GetFields().Merge(fields).toLogrus())
}

func (l *lgr) Debug(message string, args ...interface{}) {
	l.entry(nil).Debugf(message, args...)
}

func (l *lgr) Info(message string, args ...interface{}) {
	l.entry(nil).Infof(message, args...)
}

func (l *lgr) Warning(message string, args ...interface{}) {
	l.entry(nil).Warnf(message, args...)
}

func (l *lgr) Error(message string, args ...interface{}) {
	l.entry(nil).Errorf(message, args...)
}

func (l *lgr) Fatal(message string, args ...interface{}) {
	l.entry(nil).Errorf(message, args...)
}

func (l *lgr) LogDetails(lvl Level, message string, err error, fields Fields, args ...interface{}) {
	if lvl == NilLevel {
		return
	}

	e := l.entry(fields)

	if err != nil {
		e = e.WithError(err)
	}

	switch lvl {
	case DebugLevel:
		e.Debugf(message, args...)
	case InfoLevel:
		e.Infof(message, args...)
	case WarnLevel:
		e.Warnf(message, args...)
	case ErrorLevel:
		e.Errorf(message, args...)
	case FatalLevel, PanicLevel:
		e.Errorf(message, args...)
	}
}

func (l *lgr) CheckError(lvlKO, lvlOK Level, message string, err error) bool {
	if err != nil {
		l.LogDetails(lvlKO, message, err, nil)
		return false
	}

	if lvlOK != NilLevel {
		l.LogDetails(lvlOK, message, nil, nil)
	}

	return true
}

type logWriter struct {
	l   *lgr
	lvl Level
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.l.LogDetails(w.lvl, string(p), nil, nil)
	return len(p), nil
}

func (l *lgr) Output(lvl Level) io.Writer {
	return &logWriter{l: l, lvl: lvl}
}
