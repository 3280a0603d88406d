// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// delegator wraps http.ResponseWriter to observe the status code and the number of bytes written.
// Flushing and hijacking are delegated to the wrapped writer through http.ResponseController.
type delegator interface {
	http.ResponseWriter

	Status() int
	Written() int64
	Unwrap() http.ResponseWriter
}

type responseWriterDelegator struct {
	http.ResponseWriter

	status             int
	written            int64
	wroteHeader        bool
	observeWriteHeader func(int)
}

func newDelegator(w http.ResponseWriter, observeWriteHeaderFunc func(int)) delegator {
	if d, ok := w.(delegator); ok {
		return d
	}
	return &responseWriterDelegator{
		ResponseWriter:     w,
		observeWriteHeader: observeWriteHeaderFunc,
	}
}

// Status returns the status code sent to the client.
// If nothing was written yet it returns 200 as net/http would send it.
func (r *responseWriterDelegator) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseWriterDelegator) Written() int64 {
	return r.written
}

func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	// 1xx responses other than 101 may be followed by the final status.
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		r.ResponseWriter.WriteHeader(code)
		return
	}
	if r.observeWriteHeader != nil && !r.wroteHeader {
		r.observeWriteHeader(code)
	}
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

func (r *responseWriterDelegator) FlushError() error {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return http.NewResponseController(r.ResponseWriter).Flush()
}

// Hijack takes over the connection, the status is reported as 101 Switching Protocols.
func (r *responseWriterDelegator) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := http.NewResponseController(r.ResponseWriter).Hijack()
	if err == nil && !r.wroteHeader {
		r.status = http.StatusSwitchingProtocols
		r.wroteHeader = true
	}
	return conn, brw, err
}
