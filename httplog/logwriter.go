// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httplog

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httputil"

	"github.com/saucelabs/mateproxy/middleware"
)

type logWriter struct {
	b bytes.Buffer
}

func (w *logWriter) String() string {
	return w.b.String()
}

// Line writes the request summary.
// Unless fullURL is set only the path is written, query strings may carry secrets.
func (w *logWriter) Line(e middleware.LogEntry, fullURL bool, route string) {
	var u string
	if fullURL {
		u = e.Request.URL.Redacted()
	} else {
		u = e.Request.URL.Path
		if u == "" || u[0] != '/' {
			u = "/" + u
		}
	}

	fmt.Fprintf(&w.b, "%s %s ", e.Request.Method, u)
	if route != "" {
		fmt.Fprintf(&w.b, "route=%s ", route)
	}
	fmt.Fprintf(&w.b, "status=%v written=%d duration=%s\n", e.Status, e.Written, e.Duration)
}

// Dump writes the request and the response headers, bodies are never logged.
func (w *logWriter) Dump(e middleware.LogEntry) {
	if err := w.dump(e); err != nil {
		w.error(err)
	}
	w.sep()
}

func (w *logWriter) dump(e middleware.LogEntry) error {
	b, err := httputil.DumpRequest(e.Request, false)
	if err != nil {
		return err
	}
	w.b.Write(b)

	fmt.Fprintf(&w.b, "HTTP/1.1 %d %s\r\n", e.Status, http.StatusText(e.Status))
	if e.ResponseHeader != nil {
		if err := e.ResponseHeader.Write(&w.b); err != nil {
			return err
		}
	}
	w.b.WriteString("\r\n")

	return nil
}

func (w *logWriter) error(err error) {
	fmt.Fprintf(&w.b, "\nlogger error: %s\n", err)
}

func (w *logWriter) sep() {
	fmt.Fprint(&w.b, "\n")
}
