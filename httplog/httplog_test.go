// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httplog

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/saucelabs/mateproxy/middleware"
)

func TestSplitNameMode(t *testing.T) {
	tests := []struct {
		val  string
		name string
		mode Mode
	}{
		{
			val:  "api:none",
			name: "api",
			mode: None,
		},
		{
			val:  "errors",
			name: "",
			mode: Errors,
		},
	}

	for _, tc := range tests {
		t.Run(tc.val, func(t *testing.T) {
			n, m, err := SplitNameMode(tc.val)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != tc.name {
				t.Errorf("expected name %q, got %q", tc.name, n)
			}
			if m != tc.mode {
				t.Errorf("expected mode %q, got %q", tc.mode, m)
			}
		})
	}
}

func TestSplitNameModeError(t *testing.T) {
	tests := []string{
		"api:invalid",
		"invalid",
	}

	for _, tc := range tests {
		t.Run(tc, func(t *testing.T) {
			_, _, err := SplitNameMode(tc)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			t.Log(err)
		})
	}
}

func TestLoggerModes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://proxy/api/users?token=secret", http.NoBody)
	req.Header.Set("X-Request-Id", "abc")

	entry := func(status int) middleware.LogEntry {
		return middleware.LogEntry{
			Request:        req,
			ResponseHeader: http.Header{"Content-Type": {"application/json"}},
			Status:         status,
			Written:        42,
			Duration:       time.Second,
		}
	}

	tests := []struct {
		mode     Mode
		status   int
		contains []string
		excludes []string
		empty    bool
	}{
		{mode: None, status: http.StatusInternalServerError, empty: true},
		{mode: Errors, status: http.StatusOK, empty: true},
		{
			mode:     Errors,
			status:   http.StatusBadGateway,
			contains: []string{"GET /api/users status=502 written=42", "X-Request-Id: abc", "HTTP/1.1 502 Bad Gateway", "Content-Type: application/json"},
		},
		{
			mode:     ShortURL,
			status:   http.StatusOK,
			contains: []string{"GET /api/users status=200 written=42 duration=1s"},
			excludes: []string{"token", "X-Request-Id"},
		},
		{
			mode:     URL,
			status:   http.StatusOK,
			contains: []string{"GET http://proxy/api/users?token=secret status=200"},
		},
		{
			mode:     Headers,
			status:   http.StatusOK,
			contains: []string{"X-Request-Id: abc", "HTTP/1.1 200 OK"},
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(fmt.Sprintf("%s/%d", tc.mode, tc.status), func(t *testing.T) {
			var out []string
			l := NewLogger(func(format string, args ...any) {
				out = append(out, fmt.Sprintf(format, args...))
			}, tc.mode)
			l.LogFunc()(entry(tc.status))

			if tc.empty {
				if len(out) != 0 {
					t.Fatalf("expected no output, got %q", out)
				}
				return
			}
			if len(out) != 1 {
				t.Fatalf("expected one line, got %q", out)
			}
			for _, s := range tc.contains {
				if !strings.Contains(out[0], s) {
					t.Errorf("expected %q in %q", s, out[0])
				}
			}
			for _, s := range tc.excludes {
				if strings.Contains(out[0], s) {
					t.Errorf("unexpected %q in %q", s, out[0])
				}
			}
		})
	}
}

func TestLoggerRouteLabel(t *testing.T) {
	var out string
	l := NewLogger(func(format string, args ...any) {
		out = fmt.Sprintf(format, args...)
	}, ShortURL, WithRouteLabel(func(*http.Request) string { return "/api" }))

	l.LogFunc()(middleware.LogEntry{
		Request:  httptest.NewRequest(http.MethodPost, "/api/users", http.NoBody),
		Status:   http.StatusCreated,
		Written:  2,
		Duration: time.Millisecond,
	})

	if want := "POST /api/users route=/api status=201 written=2 duration=1ms\n"; out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestNewLoggerInvalidMode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewLogger(func(string, ...any) {}, Mode("body"))
}
