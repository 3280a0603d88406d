// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const (
	XForwardedFor      = "X-Forwarded-For"
	XForwardedHost     = "X-Forwarded-Host"
	XForwardedProto    = "X-Forwarded-Proto"
	XForwardedPathBase = "X-Forwarded-PathBase"

	xForwardedPrefix = "X-Forwarded-"
)

// ConnInfo describes the inbound hop as seen by the proxy.
type ConnInfo struct {
	// RemoteIP is the IP address of the client, may be empty.
	RemoteIP string
	// Scheme is the scheme of the inbound request, http or https.
	Scheme string
	// PathBase is the route prefix the request matched, may be empty.
	PathBase string
}

// ConnInfoFromRequest returns ConnInfo for a request served by net/http.
func ConnInfoFromRequest(req *http.Request, pathBase string) ConnInfo {
	ci := ConnInfo{
		Scheme:   "http",
		PathBase: pathBase,
	}
	if req.TLS != nil {
		ci.Scheme = "https"
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		ci.RemoteIP = host
	} else {
		ci.RemoteIP = req.RemoteAddr
	}
	return ci
}

// UpstreamHeaders returns the header set and the Host to send upstream for the inbound request.
// An empty host means the host of the upstream URL shall be used.
// The inbound request is not modified.
func UpstreamHeaders(in *http.Request, r *Route, ci ConnInfo) (h http.Header, host string) {
	h = in.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}

	if !r.CopyXForwardedHeaders {
		removeHeadersByPrefix(h, xForwardedPrefix)
	}

	if r.AddXForwardedHeaders {
		if ci.RemoteIP != "" {
			h.Add(XForwardedFor, ci.RemoteIP)
		}
		if in.Host != "" {
			h.Add(XForwardedHost, in.Host)
		}
		if ci.Scheme != "" {
			h.Add(XForwardedProto, ci.Scheme)
		}
		if ci.PathBase != "" {
			h.Add(XForwardedPathBase, ci.PathBase)
		}
	}

	switch r.HostHeaderMode {
	case PreserveHost:
		host = in.Host
	case FirstXForwardedHost:
		if v := headerListValues(in.Header, XForwardedHost); len(v) > 0 {
			host = v[0]
		}
	case LastXForwardedHost:
		if v := headerListValues(in.Header, XForwardedHost); len(v) > 0 {
			host = v[len(v)-1]
		}
	case UpstreamHost:
	}

	return h, host
}

// headerListValues returns the values of a comma separated list header.
// Multiple header lines are treated as one list.
func headerListValues(h http.Header, name string) []string {
	var out []string
	for _, line := range h.Values(name) {
		for _, v := range strings.Split(line, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func removeHeadersByPrefix(h http.Header, prefix string) {
	for k := range h {
		if len(k) < len(prefix) {
			continue
		}
		if strings.EqualFold(k[0:len(prefix)], prefix) {
			delete(h, k)
		}
	}
}

// Hop-by-hop headers, see RFC 7230 section 6.1.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// removeHopByHopHeaders removes hop-by-hop headers including the ones listed in Connection.
// For upgrade requests Connection and Upgrade are kept so that the upstream sees the handshake.
func removeHopByHopHeaders(h http.Header, upgrade string) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = strings.TrimSpace(sf); sf != "" && !strings.EqualFold(sf, "Upgrade") {
				h.Del(sf)
			}
		}
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}

	if upgrade != "" {
		h.Set("Connection", "Upgrade")
		h.Set("Upgrade", upgrade)
	}
}

// upgradeType returns the protocol the request or response asks to switch to, or an empty string.
func upgradeType(h http.Header) string {
	if !httpguts.HeaderValuesContainsToken(h["Connection"], "Upgrade") {
		return ""
	}
	return h.Get("Upgrade")
}

// isWebSocketUpgrade reports whether the header carries the WebSocket upgrade signal.
func isWebSocketUpgrade(h http.Header) bool {
	return strings.EqualFold(upgradeType(h), "websocket")
}
