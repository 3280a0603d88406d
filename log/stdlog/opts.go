// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package stdlog

import (
	"io"
	"log"

	mlog "github.com/saucelabs/mateproxy/log"
)

// WithLevel allows to set the logging level.
func WithLevel(level mlog.Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// WithDecorate allows to a function that modifies the log message before it is written.
func WithDecorate(f func(string) string) Option {
	return func(l *Logger) {
		l.decorate = f
	}
}

// WithOnError allows to set a function that is called when an error is logged.
// It is called with the logger name regardless of the logging level.
func WithOnError(f func(name string)) Option {
	return func(l *Logger) {
		l.onError = f
	}
}

// WithWriter replaces the output of the logger, it is mostly useful in tests.
func WithWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.log = log.New(w, "", 0)
	}
}
