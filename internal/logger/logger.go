// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package logger

import (
	"io"
	"log"
	"os"
)

// Logger provides a simple leveled logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	With(prefix string) Logger
}

type defaultLogger struct {
	out    *log.Logger
	prefix string
	debug  bool
}

// New creates a logger writing to stderr. Debug lines are dropped unless verbose.
func New(prefix string, verbose bool) Logger {
	return NewWithWriter(os.Stderr, prefix, verbose)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, prefix string, verbose bool) Logger {
	return &defaultLogger{
		out:    log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		prefix: tag(prefix),
		debug:  verbose,
	}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a nop logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.out.Printf("[INFO] "+l.prefix+format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.out.Printf("[WARN] "+l.prefix+format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.out.Printf("[ERROR] "+l.prefix+format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.out.Printf("[DEBUG] "+l.prefix+format, args...)
}

func (l *defaultLogger) With(prefix string) Logger {
	return &defaultLogger{
		out:    l.out,
		prefix: l.prefix + tag(prefix),
		debug:  l.debug,
	}
}

func tag(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + ": "
}

type nopLogger struct{}

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Warn(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}
func (n nopLogger) With(prefix string) Logger              { return n }
