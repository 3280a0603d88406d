// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package stdlog

import (
	"io"
	"log"
	"os"

	mlog "github.com/saucelabs/mateproxy/log"
)

// Option is a function that modifies the Logger.
type Option func(*Logger)

func New(cfg *mlog.Config, opts ...Option) *Logger {
	var w io.Writer = os.Stdout
	if cfg.File != nil {
		w = cfg.File
	}

	l := &Logger{
		log:   log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC),
		level: cfg.Level,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l.Named("")
}

// Logger implements the mateproxy log.Logger interface using the standard log package.
type Logger struct {
	log   *log.Logger
	name  string
	level mlog.Level

	errorPfx string
	infoPfx  string
	debugPfx string

	decorate func(string) string
	onError  func(name string)
}

var _ mlog.Logger = (*Logger)(nil)

// Named returns a copy of the logger with the given name and options applied.
// The name is printed in square brackets before the log level.
func (sl Logger) Named(name string, opts ...Option) *Logger { //nolint:gocritic // we pass by value to get a copy
	sl.name = name

	if name != "" {
		name = "[" + name + "] "
	}

	sl.errorPfx = name + "[ERROR] "
	sl.infoPfx = name + "[INFO] "
	sl.debugPfx = name + "[DEBUG] "

	for _, opt := range opts {
		opt(&sl)
	}

	return &sl
}

func (sl *Logger) Errorf(format string, args ...any) {
	if sl.onError != nil {
		sl.onError(sl.name)
	}
	if sl.level < mlog.ErrorLevel {
		return
	}
	sl.printf(sl.errorPfx, format, args...)
}

func (sl *Logger) Infof(format string, args ...any) {
	if sl.level < mlog.InfoLevel {
		return
	}
	sl.printf(sl.infoPfx, format, args...)
}

func (sl *Logger) Debugf(format string, args ...any) {
	if sl.level < mlog.DebugLevel {
		return
	}
	sl.printf(sl.debugPfx, format, args...)
}

func (sl *Logger) printf(pfx, format string, args ...any) {
	if sl.decorate != nil {
		format = sl.decorate(format)
	}
	sl.log.Printf(pfx+format, args...)
}

// Unwrap returns the underlying log.Logger pointer.
func (sl *Logger) Unwrap() *log.Logger {
	return sl.log
}
