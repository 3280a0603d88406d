// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package httplog logs HTTP requests served by the proxy and the API server.
package httplog

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/saucelabs/mateproxy/middleware"
)

// Mode defines the logging verbosity.
type Mode string

const (
	None     Mode = "none"
	ShortURL Mode = "short-url"
	URL      Mode = "url"
	Headers  Mode = "headers"
	Errors   Mode = "errors"
)

func (m Mode) String() string {
	if m == "" {
		return DefaultMode.String()
	}
	return string(m)
}

func SplitNameMode(val string) (name string, mode Mode, err error) {
	n, m, ok := strings.Cut(val, ":")
	if ok {
		name = n
		mode = Mode(m)
	} else {
		name = ""
		mode = Mode(val)
	}

	switch mode {
	case None, ShortURL, URL, Headers, Errors:
	default:
		return "", "", fmt.Errorf("invalid mode %q", mode)
	}

	return
}

var DefaultMode = Errors

type Logger struct {
	log   func(format string, args ...any)
	mode  Mode
	route func(*http.Request) string
}

type Option func(*Logger)

// WithRouteLabel adds route=<label> to every logged request line.
func WithRouteLabel(f func(*http.Request) string) Option {
	return func(l *Logger) {
		l.route = f
	}
}

// NewLogger returns a logger that logs HTTP requests and responses.
func NewLogger(logFunc func(format string, args ...any), mode Mode, opts ...Option) *Logger {
	if mode == "" {
		mode = DefaultMode
	}
	if _, _, err := SplitNameMode(string(mode)); err != nil {
		panic(err)
	}

	l := &Logger{
		log:  logFunc,
		mode: mode,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogFunc returns the middleware logger for the mode.
// The errors mode logs only responses with status 5xx, with headers.
func (l *Logger) LogFunc() middleware.Logger {
	if l.mode == None {
		return func(middleware.LogEntry) {}
	}

	return func(e middleware.LogEntry) {
		if l.mode == Errors && e.Status < http.StatusInternalServerError {
			return
		}

		var route string
		if l.route != nil {
			route = l.route(e.Request)
		}

		var w logWriter
		w.Line(e, l.mode == URL, route)
		if l.mode == Headers || l.mode == Errors {
			w.Dump(e)
		}
		l.log("%s", w.String())
	}
}
