// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Leveled logging with systemd-style numeric prefixes
// (https://www.freedesktop.org/software/systemd/man/sd-daemon.html).
// Time/date are omitted by default since systemd/journald already stamps
// every line; SetLogDateTime(true) switches that on for non-systemd runs.

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
	CritPrefix  string = "<2>[CRITICAL] "
)

var (
	DebugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	CritLog  *log.Logger = log.New(CritWriter, CritPrefix, log.Llongfile)

	DebugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	CritTimeLog  *log.Logger = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel silences loggers below the named level ("debug", "info", "warn", "err", "crit").
func SetLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Printf("pkg/log: invalid loglevel %q, using 'info'\n", lvl)
		SetLevel("info")
	}
}

func SetLogDateTime(v bool) { logDateTime = v }

func output(w io.Writer, l, lt *log.Logger, s string) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		lt.Output(3, s)
	} else {
		l.Output(3, s)
	}
}

func Debug(v ...interface{}) { output(DebugWriter, DebugLog, DebugTimeLog, fmt.Sprint(v...)) }
func Info(v ...interface{})  { output(InfoWriter, InfoLog, InfoTimeLog, fmt.Sprint(v...)) }
func Warn(v ...interface{})  { output(WarnWriter, WarnLog, WarnTimeLog, fmt.Sprint(v...)) }
func Error(v ...interface{}) { output(ErrWriter, ErrLog, ErrTimeLog, fmt.Sprint(v...)) }
func Crit(v ...interface{})  { output(CritWriter, CritLog, CritTimeLog, fmt.Sprint(v...)) }

func Debugf(format string, v ...interface{}) {
	output(DebugWriter, DebugLog, DebugTimeLog, fmt.Sprintf(format, v...))
}
func Infof(format string, v ...interface{}) {
	output(InfoWriter, InfoLog, InfoTimeLog, fmt.Sprintf(format, v...))
}
func Warnf(format string, v ...interface{}) {
	output(WarnWriter, WarnLog, WarnTimeLog, fmt.Sprintf(format, v...))
}
func Errorf(format string, v ...interface{}) {
	output(ErrWriter, ErrLog, ErrTimeLog, fmt.Sprintf(format, v...))
}
func Critf(format string, v ...interface{}) {
	output(CritWriter, CritLog, CritTimeLog, fmt.Sprintf(format, v...))
}

// Abort logs at crit level and terminates the process. Reserved for
// unrecoverable startup errors; request- and tick-scoped failures must
// never call this.
func Abort(v ...interface{}) {
	Crit(v...)
	os.Exit(1)
}

func Abortf(format string, v ...interface{}) {
	Critf(format, v...)
	os.Exit(1)
}
