// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/saucelabs/mateproxy/log"
)

// CopyResponse writes status, header and body to w.
// Hop-by-hop headers are not copied, all other headers are copied as is.
// Responses without Content-Length and event streams are flushed after every write.
func CopyResponse(w http.ResponseWriter, status int, header http.Header, body io.Reader) error {
	h := w.Header()
	for k, vv := range header {
		h[k] = append(h[k][:0:0], vv...)
	}
	removeHopByHopHeaders(h, "")

	w.WriteHeader(status)

	if body == nil || body == http.NoBody {
		return nil
	}

	var dst io.Writer = w
	if shouldFlush(header) {
		dst = flushWriter{w: w, rc: http.NewResponseController(w)}
	}

	bufp := copyBufPool.Get().(*[]byte) //nolint:forcetypeassert // It's *[]byte.
	defer copyBufPool.Put(bufp)

	_, err := io.CopyBuffer(dst, body, *bufp)
	return err
}

func shouldFlush(h http.Header) bool {
	if h.Get("Content-Length") == "" {
		return true
	}
	ct := h.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "text/event-stream")
}

type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f flushWriter) Write(p []byte) (n int, err error) {
	n, err = f.w.Write(p)
	if n > 0 && err == nil {
		err = f.rc.Flush()
	}
	return
}

var copyBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

// drainBuffer writes data already read from the client connection by the HTTP server.
func drainBuffer(w io.Writer, r *bufio.Reader) error {
	if n := r.Buffered(); n > 0 {
		rbuf, err := r.Peek(n)
		if err != nil {
			return err
		}
		if _, err := w.Write(rbuf); err != nil {
			return err
		}
	}
	return nil
}

// bicopy runs the copiers concurrently and returns when all of them are finished.
// A copier finishing with EOF closes the write side of its destination,
// the others keep copying until they finish on their own.
// A copy error or ctx cancellation closes all destinations.
func bicopy(ctx context.Context, l log.Logger, cc ...copier) {
	donec := make(chan error, len(cc))
	for i := range cc {
		go cc[i].copy(l, donec)
	}

	closeAll := func() {
		for i := range cc {
			cc[i].close(l)
		}
	}

	done := ctx.Done()
	for n := 0; n < len(cc); {
		select {
		case err := <-donec:
			n++
			if err != nil {
				closeAll()
			}
		case <-done:
			l.Debugf("closing tunnel: %s", ctx.Err())
			closeAll()
			done = nil
		}
	}
}

type copier struct {
	name string
	dst  io.WriteCloser
	src  io.Reader
}

func (c copier) copy(l log.Logger, donec chan<- error) {
	bufp := copyBufPool.Get().(*[]byte) //nolint:forcetypeassert // It's *[]byte.
	buf := *bufp
	defer copyBufPool.Put(bufp)

	_, err := io.CopyBuffer(c.dst, c.src, buf)
	if err != nil && isClosedConnError(err) {
		err = nil
	}
	if err != nil {
		l.Errorf("failed to copy tunnel name=%s: %s", c.name, err)
	} else {
		c.closeWriter(l)
	}

	l.Debugf("tunnel finished copying name=%s", c.name)
	donec <- err
}

func (c copier) closeWriter(l log.Logger) {
	cw, ok := asCloseWriter(c.dst)
	if !ok {
		l.Debugf("cannot close write side of tunnel name=%s type=%T", c.name, c.dst)
		return
	}
	if err := cw.CloseWrite(); err != nil && !isClosedConnError(err) {
		l.Debugf("failed to close write side of tunnel name=%s: %s", c.name, err)
	}
}

func (c copier) close(l log.Logger) {
	if err := c.dst.Close(); err != nil && !isClosedConnError(err) {
		l.Debugf("failed to close tunnel name=%s: %s", c.name, err)
	}
}

type closeWriter interface {
	CloseWrite() error
}

var (
	_ closeWriter = (*net.TCPConn)(nil)
	_ closeWriter = (*tls.Conn)(nil)
	_ closeWriter = (*trackedConn)(nil)
)

// asCloseWriter returns a closeWriter for w if it implements closeWriter.
// If w is a pointer to a struct, it checks if any of the exported fields implement closeWriter.
// This is the case for the body of a 101 Switching Protocols response returned by http.Transport.
func asCloseWriter(w io.Writer) (closeWriter, bool) {
	if cw, ok := w.(closeWriter); ok {
		return cw, true
	}

	v := reflect.Indirect(reflect.ValueOf(w))
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.CanInterface() {
			if cw, ok := f.Interface().(closeWriter); ok {
				return cw, true
			}
		}
	}

	return nil, false
}

func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// writeSwitchingProtocols writes the 101 response status line and headers to the hijacked client connection.
// The response has no body, the connection is handed over to the tunnel right after the headers.
func writeSwitchingProtocols(w *bufio.Writer, res *http.Response) error {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", res.StatusCode, http.StatusText(res.StatusCode))
	if err := res.Header.Write(w); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	w.WriteString("\r\n")
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
