// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUpstreamHeaders(t *testing.T) {
	ci := ConnInfo{RemoteIP: "10.0.0.1", Scheme: "https", PathBase: "/api"}

	tests := []struct {
		name     string
		route    Route
		in       http.Header
		host     string
		want     http.Header
		wantHost string
	}{
		{
			name:  "copy and add",
			route: Route{CopyXForwardedHeaders: true, AddXForwardedHeaders: true},
			in: http.Header{
				"X-Forwarded-For":  {"1.1.1.1"},
				"X-Forwarded-Host": {"edge.example.com"},
				"Accept":           {"*/*"},
			},
			host: "proxy.example.com",
			want: http.Header{
				"X-Forwarded-For":      {"1.1.1.1", "10.0.0.1"},
				"X-Forwarded-Host":     {"edge.example.com", "proxy.example.com"},
				"X-Forwarded-Proto":    {"https"},
				"X-Forwarded-Pathbase": {"/api"},
				"Accept":               {"*/*"},
			},
		},
		{
			name:  "strip without add",
			route: Route{},
			in: http.Header{
				"X-Forwarded-For":    {"1.1.1.1"},
				"X-Forwarded-Prefix": {"/x"},
				"Accept":             {"*/*"},
			},
			host: "proxy.example.com",
			want: http.Header{
				"Accept": {"*/*"},
			},
		},
		{
			name:  "strip and add",
			route: Route{AddXForwardedHeaders: true},
			in: http.Header{
				"X-Forwarded-For": {"1.1.1.1"},
			},
			host: "proxy.example.com",
			want: http.Header{
				"X-Forwarded-For":      {"10.0.0.1"},
				"X-Forwarded-Host":     {"proxy.example.com"},
				"X-Forwarded-Proto":    {"https"},
				"X-Forwarded-Pathbase": {"/api"},
			},
		},
		{
			name:  "copy without add",
			route: Route{CopyXForwardedHeaders: true},
			in: http.Header{
				"X-Forwarded-For": {"1.1.1.1"},
			},
			host: "proxy.example.com",
			want: http.Header{
				"X-Forwarded-For": {"1.1.1.1"},
			},
		},
		{
			name:     "preserve host",
			route:    Route{CopyXForwardedHeaders: true, HostHeaderMode: PreserveHost},
			in:       http.Header{},
			host:     "proxy.example.com",
			want:     http.Header{},
			wantHost: "proxy.example.com",
		},
		{
			name:  "first x-forwarded-host",
			route: Route{CopyXForwardedHeaders: true, HostHeaderMode: FirstXForwardedHost},
			in: http.Header{
				"X-Forwarded-Host": {"a, b", "c"},
			},
			host: "proxy.example.com",
			want: http.Header{
				"X-Forwarded-Host": {"a, b", "c"},
			},
			wantHost: "a",
		},
		{
			name:  "last x-forwarded-host",
			route: Route{CopyXForwardedHeaders: true, HostHeaderMode: LastXForwardedHost},
			in: http.Header{
				"X-Forwarded-Host": {"a, b"},
			},
			host: "proxy.example.com",
			want: http.Header{
				"X-Forwarded-Host": {"a, b"},
			},
			wantHost: "b",
		},
		{
			name:     "last x-forwarded-host missing",
			route:    Route{CopyXForwardedHeaders: true, HostHeaderMode: LastXForwardedHost},
			in:       http.Header{},
			host:     "proxy.example.com",
			want:     http.Header{},
			wantHost: "",
		},
		{
			name:  "x-forwarded-host is read before stripping",
			route: Route{HostHeaderMode: LastXForwardedHost},
			in: http.Header{
				"X-Forwarded-Host": {"a, b"},
			},
			host:     "proxy.example.com",
			want:     http.Header{},
			wantHost: "b",
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			in := &http.Request{Header: tc.in, Host: tc.host}
			orig := tc.in.Clone()

			h, host := UpstreamHeaders(in, &tc.route, ci)
			if diff := cmp.Diff(tc.want, h); diff != "" {
				t.Errorf("unexpected headers (-want +got):\n%s", diff)
			}
			if host != tc.wantHost {
				t.Errorf("host = %q, want %q", host, tc.wantHost)
			}
			if diff := cmp.Diff(orig, in.Header); diff != "" {
				t.Errorf("inbound headers modified (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConnInfoFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.0.2.1:1234"

	if diff := cmp.Diff(ConnInfo{RemoteIP: "192.0.2.1", Scheme: "http", PathBase: "/api"}, ConnInfoFromRequest(req, "/api")); diff != "" {
		t.Errorf("unexpected conn info (-want +got):\n%s", diff)
	}

	req.TLS = &tls.ConnectionState{}
	req.RemoteAddr = "@"
	if diff := cmp.Diff(ConnInfo{RemoteIP: "@", Scheme: "https"}, ConnInfoFromRequest(req, "")); diff != "" {
		t.Errorf("unexpected conn info (-want +got):\n%s", diff)
	}
}

func TestRemoveHopByHopHeaders(t *testing.T) {
	h := http.Header{
		"Connection":        {"keep-alive, X-Private"},
		"Keep-Alive":        {"timeout=5"},
		"X-Private":         {"secret"},
		"Transfer-Encoding": {"chunked"},
		"Te":                {"trailers"},
		"Accept":            {"*/*"},
	}
	removeHopByHopHeaders(h, "")
	if diff := cmp.Diff(http.Header{"Accept": {"*/*"}}, h); diff != "" {
		t.Errorf("unexpected headers (-want +got):\n%s", diff)
	}

	h = http.Header{
		"Connection":            {"keep-alive, Upgrade"},
		"Upgrade":               {"websocket"},
		"Sec-Websocket-Key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
		"Sec-Websocket-Version": {"13"},
	}
	removeHopByHopHeaders(h, "websocket")
	want := http.Header{
		"Connection":            {"Upgrade"},
		"Upgrade":               {"websocket"},
		"Sec-Websocket-Key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
		"Sec-Websocket-Version": {"13"},
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("unexpected headers (-want +got):\n%s", diff)
	}
}

func TestIsWebSocketUpgrade(t *testing.T) {
	tests := []struct {
		h    http.Header
		want bool
	}{
		{http.Header{"Connection": {"Upgrade"}, "Upgrade": {"websocket"}}, true},
		{http.Header{"Connection": {"keep-alive, upgrade"}, "Upgrade": {"WebSocket"}}, true},
		{http.Header{"Upgrade": {"websocket"}}, false},
		{http.Header{"Connection": {"Upgrade"}, "Upgrade": {"h2c"}}, false},
		{http.Header{}, false},
	}

	for i, tc := range tests {
		if got := isWebSocketUpgrade(tc.h); got != tc.want {
			t.Errorf("%d: got %v, want %v", i, got, tc.want)
		}
	}
}
