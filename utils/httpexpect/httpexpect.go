// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package httpexpect is a minimal HTTP test client for plain request-response checks.
// It reads the whole body so that responses can be checked after the connection is released.
package httpexpect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"testing"
)

type Client struct {
	t       *testing.T
	rt      http.RoundTripper
	trace   *httptrace.ClientTrace
	baseURL string
}

func NewClient(t *testing.T, baseURL string, rt http.RoundTripper) *Client {
	t.Helper()

	if rt == nil {
		tr := &http.Transport{DisableCompression: true}
		t.Cleanup(tr.CloseIdleConnections)
		rt = tr
	}

	return &Client{
		t:       t,
		rt:      rt,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *Client) Trace(enabled bool) {
	if !enabled {
		c.trace = nil
	} else {
		c.trace = newTestClientTrace(c.t)
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// WithBody sets a request body.
func WithBody(body string) func(*http.Request) {
	return func(req *http.Request) {
		req.Body = io.NopCloser(strings.NewReader(body))
		req.ContentLength = int64(len(body))
	}
}

func (c *Client) GET(path string, opts ...func(*http.Request)) *Response {
	c.t.Helper()
	return c.Request(http.MethodGet, path, opts...)
}

func (c *Client) HEAD(path string, opts ...func(*http.Request)) *Response {
	c.t.Helper()
	return c.Request(http.MethodHead, path, opts...)
}

func (c *Client) POST(path, body string, opts ...func(*http.Request)) *Response {
	c.t.Helper()
	return c.Request(http.MethodPost, path, append([]func(*http.Request){WithBody(body)}, opts...)...)
}

func (c *Client) Request(method, path string, opts ...func(*http.Request)) *Response {
	c.t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.baseURL+path, http.NoBody)
	if err != nil {
		c.t.Fatalf("Failed to create request %s, %s: %v", method, path, err)
	}
	for _, opt := range opts {
		opt(req)
	}
	if c.trace != nil {
		req = req.WithContext(httptrace.WithClientTrace(req.Context(), c.trace))
	}

	resp, err := c.rt.RoundTrip(req)
	if err != nil {
		c.t.Fatalf("Failed to execute request %s, %s: %v", method, req.URL, err)
	}
	defer resp.Body.Close()

	return c.MakeResponse(resp)
}

func (c *Client) MakeResponse(resp *http.Response) *Response {
	c.t.Helper()
	req := resp.Request
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("Failed to read body from %s, %s: %v", req.Method, req.URL, err)
	}
	return &Response{Response: resp, Body: b, t: c.t}
}

type Response struct {
	*http.Response
	Body []byte
	t    *testing.T
}

func (r *Response) String() string {
	return fmt.Sprintf("%s, %s", r.Request.Method, r.Request.URL)
}

func (r *Response) ExpectStatus(status int) *Response {
	r.t.Helper()
	if r.StatusCode != status {
		r.t.Fatalf("%s: expected status %d, got %d", r, status, r.StatusCode)
	}
	return r
}

func (r *Response) ExpectHeader(key, value string) *Response {
	r.t.Helper()
	if v := r.Header.Get(key); v != value {
		r.t.Fatalf("%s: expected header %s to equal '%s', got '%s'", r, key, value, v)
	}
	return r
}

func (r *Response) ExpectBodySize(expectedSize int) *Response {
	r.t.Helper()
	if bodySize := len(r.Body); bodySize != expectedSize {
		r.t.Fatalf("%s: expected body size %d, got %d", r, expectedSize, bodySize)
	}
	return r
}

func (r *Response) ExpectBodyContent(content string) *Response {
	r.t.Helper()
	if b := string(r.Body); b != content {
		r.t.Fatalf("%s: expected body to equal '%s', got '%s'", r, content, b)
	}
	return r
}

func (r *Response) ExpectBodyContains(substr string) *Response {
	r.t.Helper()
	if b := string(r.Body); !strings.Contains(b, substr) {
		r.t.Fatalf("%s: expected body to contain '%s', got '%s'", r, substr, b)
	}
	return r
}
