// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package httpbin implements an upstream server used to exercise the proxy.
package httpbin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Handler returns http.Handler that implements elements of httpbin.org API.
func Handler() http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/anything", anythingHandler)
	m.HandleFunc("/anything/", anythingHandler)
	m.HandleFunc("/delay/", delayHandler)
	m.HandleFunc("/status/", statusHandler)
	m.HandleFunc("/stream-bytes/", streamBytesHandler)
	m.HandleFunc("/count-bytes/", countBytesHandler)
	m.HandleFunc("/gzip", encodedHandler("gzip"))
	m.HandleFunc("/deflate", encodedHandler("deflate"))
	m.HandleFunc("/redirect-to", redirectToHandler)
	m.HandleFunc("/cookies/set", setCookiesHandler)
	m.HandleFunc("/events/", events)
	m.HandleFunc("/ws/echo", wsEcho)
	m.HandleFunc("/ws/reject", wsReject)
	return m
}

// Anything is the response of the /anything endpoint.
type Anything struct {
	Method string      `json:"method"`
	URL    string      `json:"url"`
	Host   string      `json:"host"`
	Header http.Header `json:"headers"`
	Body   string      `json:"body"`
}

// anythingHandler implements the /anything endpoint.
// It returns the request as seen by the server.
// See https://httpbin.org/#/Anything
func anythingHandler(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Anything{ //nolint:errcheck // best effort
		Method: r.Method,
		URL:    r.URL.RequestURI(),
		Host:   r.Host,
		Header: r.Header,
		Body:   string(b),
	})
}

// delayHandler implements the /delay/{milliseconds} endpoint.
func delayHandler(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path[len("/delay/"):]

	ms, ok := atoi(w, p)
	if !ok {
		return
	}

	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()

	select {
	case <-r.Context().Done():
		t.Stop()
	case <-t.C:
	}

	w.WriteHeader(http.StatusOK)
}

// statusHandler implements the /status/{code} endpoint.
// See https://httpbin.org/#/Status_codes
func statusHandler(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path[len("/status/"):]

	c, ok := atoi(w, p)
	if !ok {
		return
	}
	w.WriteHeader(c)

	q := r.URL.Query()
	if b := q.Get("body"); b == "true" {
		w.Write([]byte(http.StatusText(c)))
	}
}

// streamBytesHandler implements the /stream-bytes/{bytes} endpoint.
// See https://httpbin.org/#/Dynamic_data/get_stream_bytes__n_
func streamBytesHandler(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path[len("/stream-bytes/"):]

	n, ok := atoi(w, p)
	if !ok {
		return
	}

	q := r.URL.Query()
	chunkSize := 10 * 1024
	if cs := q.Get("chunk_size"); cs != "" {
		chunkSize, ok = atoi(w, cs)
		if !ok {
			return
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	io.CopyBuffer(w, patternBody("MateProxy", int64(n)), make([]byte, chunkSize)) //nolint:errcheck // best effort
}

// countBytesHandler implements the /count-bytes/ endpoint.
// It reads the request body and sends back the number of bytes read in a `Body-Size` header.
func countBytesHandler(w http.ResponseWriter, r *http.Request) {
	n, _ := io.Copy(io.Discard, r.Body) //nolint:errcheck // best effort
	w.Header().Set("Body-Size", strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusOK)
}

// EncodedBody is the decoded body of the /gzip and /deflate endpoints.
const EncodedBody = `{"encoded":true}`

// encodedHandler implements the /gzip and /deflate endpoints.
// The body is a vendor JSON document compressed regardless of Accept-Encoding.
func encodedHandler(enc string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.httpbin+json")
		w.Header().Set("Content-Encoding", enc)

		var zw io.WriteCloser
		switch enc {
		case "gzip":
			zw = gzip.NewWriter(w)
		case "deflate":
			zw, _ = flate.NewWriter(w, flate.DefaultCompression) //nolint:errcheck // valid level
		}
		io.WriteString(zw, EncodedBody) //nolint:errcheck // best effort
		zw.Close()
	}
}

// redirectToHandler implements the /redirect-to?url={url}&status_code={code} endpoint.
func redirectToHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := http.StatusFound
	if s := q.Get("status_code"); s != "" {
		var ok bool
		if code, ok = atoi(w, s); !ok {
			return
		}
	}
	w.Header().Set("Location", q.Get("url"))
	w.WriteHeader(code)
}

// setCookiesHandler implements the /cookies/set?{name}={value} endpoint.
func setCookiesHandler(w http.ResponseWriter, r *http.Request) {
	for k, vv := range r.URL.Query() {
		for _, v := range vv {
			http.SetCookie(w, &http.Cookie{Name: k, Value: v, Path: "/"})
		}
	}
	w.WriteHeader(http.StatusOK)
}

func atoi(w http.ResponseWriter, s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		msg := fmt.Sprintf("invalid argument %q: %s", s, err)
		http.Error(w, msg, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}
