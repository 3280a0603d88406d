// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// HostHeaderMode selects the Host header sent to the upstream.
type HostHeaderMode string

const (
	// UpstreamHost uses the host of the route upstream URL.
	UpstreamHost HostHeaderMode = "upstream"
	// PreserveHost uses the Host header of the inbound request.
	PreserveHost HostHeaderMode = "preserve-host"
	// FirstXForwardedHost uses the first X-Forwarded-Host value of the inbound request if any.
	FirstXForwardedHost HostHeaderMode = "first-x-forwarded-host"
	// LastXForwardedHost uses the last X-Forwarded-Host value of the inbound request if any.
	LastXForwardedHost HostHeaderMode = "last-x-forwarded-host"
)

// ParseHostHeaderMode accepts the canonical names and their CamelCase variants
// e.g. PreserveHost or LastXForwardedHost.
func ParseHostHeaderMode(val string) (HostHeaderMode, error) {
	var m HostHeaderMode
	err := m.UnmarshalText([]byte(val))
	return m, err
}

func (m *HostHeaderMode) UnmarshalText(text []byte) error {
	k := strings.ToLower(strings.ReplaceAll(string(text), "-", ""))
	switch k {
	case "", "upstream":
		*m = UpstreamHost
	case "preservehost":
		*m = PreserveHost
	case "firstxforwardedhost":
		*m = FirstXForwardedHost
	case "lastxforwardedhost":
		*m = LastXForwardedHost
	default:
		return fmt.Errorf("invalid host header mode: %s", text)
	}
	return nil
}

func (m HostHeaderMode) String() string {
	return string(m)
}

func (m HostHeaderMode) isValid() bool {
	switch m {
	case UpstreamHost, PreserveHost, FirstXForwardedHost, LastXForwardedHost:
		return true
	default:
		return false
	}
}

// Route maps a path prefix to an upstream.
// Routes are immutable once the RouteTable is created.
type Route struct {
	// Name is used for display only.
	Name string

	// Path is the path prefix, it must start with "/".
	Path string

	// Upstream is the base URL requests are forwarded to.
	Upstream *url.URL

	// CopyXForwardedHeaders keeps X-Forwarded-* headers of the inbound request.
	CopyXForwardedHeaders bool

	// AddXForwardedHeaders appends X-Forwarded-* headers describing this hop.
	AddXForwardedHeaders bool

	HostHeaderMode HostHeaderMode

	// InsecureSkipVerify disables verification of the upstream TLS certificate.
	InsecureSkipVerify bool
}

func DefaultRoute() *Route {
	return &Route{
		CopyXForwardedHeaders: true,
		AddXForwardedHeaders:  true,
		HostHeaderMode:        UpstreamHost,
	}
}

func (r *Route) Validate() error {
	if r.Path == "" {
		return errors.New("path is required")
	}
	if r.Path[0] != '/' {
		return fmt.Errorf("path %q must start with /", r.Path)
	}
	if r.Upstream == nil {
		return errors.New("upstream is required")
	}
	if err := validateUpstream(r.Upstream); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if !r.HostHeaderMode.isValid() {
		return fmt.Errorf("unsupported host header mode %q", r.HostHeaderMode)
	}
	return nil
}

func validateUpstream(u *url.URL) error {
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", u.Redacted())
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Fragment != "" {
		return fmt.Errorf("%q must not have a fragment", u.Redacted())
	}
	return nil
}

// ParseUpstreamURL parses an upstream base URL.
// WebSocket schemes are mapped to their HTTP counterparts, the handshake is plain HTTP.
func ParseUpstreamURL(val string) (*url.URL, error) {
	u, err := url.Parse(val)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = strings.ToLower(u.Scheme)
	}

	if err := validateUpstream(u); err != nil {
		return nil, err
	}

	return u, nil
}

// ParseRoute parses a route in the format "<path>=<upstream>[;<option>...]".
// The supported options are:
//   - name=<name>
//   - copy-xforwarded=<bool>
//   - add-xforwarded=<bool>
//   - host=<upstream|preserve-host|first-x-forwarded-host|last-x-forwarded-host>
//   - insecure[=<bool>]
func ParseRoute(val string) (*Route, error) {
	parts := strings.Split(val, ";")

	path, upstream, ok := strings.Cut(parts[0], "=")
	if !ok {
		return nil, fmt.Errorf("invalid route %q, expected <path>=<upstream>", val)
	}

	r := DefaultRoute()
	r.Path = strings.TrimSpace(path)

	u, err := ParseUpstreamURL(strings.TrimSpace(upstream))
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", val, err)
	}
	r.Upstream = u

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		k, v, hasValue := strings.Cut(opt, "=")
		if err := r.setOption(k, v, hasValue); err != nil {
			return nil, fmt.Errorf("route %q: option %q: %w", val, k, err)
		}
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("route %q: %w", val, err)
	}

	return r, nil
}

func (r *Route) setOption(k, v string, hasValue bool) error {
	parseBool := func(dst *bool) (err error) {
		if !hasValue {
			*dst = true
			return nil
		}
		*dst, err = strconv.ParseBool(v)
		return
	}

	switch k {
	case "name":
		r.Name = v
	case "copy-xforwarded":
		return parseBool(&r.CopyXForwardedHeaders)
	case "add-xforwarded":
		return parseBool(&r.AddXForwardedHeaders)
	case "host":
		return r.HostHeaderMode.UnmarshalText([]byte(v))
	case "insecure":
		return parseBool(&r.InsecureSkipVerify)
	default:
		return errors.New("unknown option")
	}

	return nil
}

// String returns "<path> -> <upstream>" or "<name> (<path> -> <upstream>)" if the route is named.
func (r *Route) String() string {
	var u string
	if r.Upstream != nil {
		u = r.Upstream.Redacted()
	}
	if r.Name == "" {
		return r.Path + " -> " + u
	}
	return r.Name + " (" + r.Path + " -> " + u + ")"
}

// FlagString returns the route in the format accepted by ParseRoute.
func (r *Route) FlagString() string {
	var sb strings.Builder
	sb.WriteString(r.Path)
	sb.WriteString("=")
	if r.Upstream != nil {
		sb.WriteString(r.Upstream.Redacted())
	}
	if r.Name != "" {
		sb.WriteString(";name=" + r.Name)
	}
	if !r.CopyXForwardedHeaders {
		sb.WriteString(";copy-xforwarded=false")
	}
	if !r.AddXForwardedHeaders {
		sb.WriteString(";add-xforwarded=false")
	}
	if r.HostHeaderMode != UpstreamHost && r.HostHeaderMode != "" {
		sb.WriteString(";host=" + r.HostHeaderMode.String())
	}
	if r.InsecureSkipVerify {
		sb.WriteString(";insecure")
	}
	return sb.String()
}
