// Package logger provides the severity-prefixed logging sink shared by the
// storage and crafting components. Critical is reserved for conditions that
// may have lost a player's items.
package logger

import (
	"io"
	"log"
	"os"
)

// Logger is the sink every component receives by injection.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(format string, args ...any)
}

// StdLogger writes one prefixed line per message.
type StdLogger struct {
	debug    *log.Logger
	info     *log.Logger
	warn     *log.Logger
	err      *log.Logger
	critical *log.Logger
}

// New creates a logger writing to w. Debug lines are dropped unless
// debug is true.
func New(w io.Writer, debug bool) *StdLogger {
	flags := log.Ldate | log.Ltime
	l := &StdLogger{
		info:     log.New(w, "[STORAGEHUB-INFO] ", flags),
		warn:     log.New(w, "[STORAGEHUB-WARN] ", flags),
		err:      log.New(w, "[STORAGEHUB-ERROR] ", flags),
		critical: log.New(w, "[STORAGEHUB-CRITICAL] ", flags),
	}
	if debug {
		l.debug = log.New(w, "[STORAGEHUB-DEBUG] ", flags)
	}
	return l
}

// NewStderr creates a logger writing to standard error.
func NewStderr(debug bool) *StdLogger {
	return New(os.Stderr, debug)
}

// Debugf logs diagnostic detail.
func (l *StdLogger) Debugf(format string, args ...any) {
	if l.debug != nil {
		l.debug.Printf(format, args...)
	}
}

// Infof logs informational messages.
func (l *StdLogger) Infof(format string, args ...any) {
	l.info.Printf(format, args...)
}

// Warnf logs recoverable problems that were skipped.
func (l *StdLogger) Warnf(format string, args ...any) {
	l.warn.Printf(format, args...)
}

// Errorf logs failed operations.
func (l *StdLogger) Errorf(format string, args ...any) {
	l.err.Printf(format, args...)
}

// Criticalf logs possible item loss.
func (l *StdLogger) Criticalf(format string, args ...any) {
	l.critical.Printf(format, args...)
}

type nop struct{}

func (nop) Debugf(string, ...any)    {}
func (nop) Infof(string, ...any)     {}
func (nop) Warnf(string, ...any)     {}
func (nop) Errorf(string, ...any)    {}
func (nop) Criticalf(string, ...any) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nop{}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nop{}
	}
	return l
}
