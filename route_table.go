// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrNoRoutes is returned when creating a RouteTable without routes.
	ErrNoRoutes = errors.New("at least one route is required")
	// ErrNoRoute is returned when no route matches the request path.
	ErrNoRoute = errors.New("no route matches request path")
)

// RouteTable is an immutable set of routes.
// It is safe for concurrent use.
type RouteTable struct {
	routes  []*Route
	byMatch []routeEntry
}

type routeEntry struct {
	prefix string
	route  *Route
}

// NewRouteTable validates the routes and returns a RouteTable.
// Routes are matched by the longest path prefix, configuration order does not matter.
func NewRouteTable(routes []*Route) (*RouteTable, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	t := &RouteTable{
		routes:  make([]*Route, 0, len(routes)),
		byMatch: make([]routeEntry, 0, len(routes)),
	}

	seen := make(map[string]*Route, len(routes))
	for i, r := range routes {
		if r == nil {
			return nil, fmt.Errorf("route %d: nil route", i)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("route %d %s: %w", i, r, err)
		}

		rc := *r
		u := *r.Upstream
		rc.Upstream = &u

		prefix := trimTrailingSlash(rc.Path)
		if prev, ok := seen[prefix]; ok {
			return nil, fmt.Errorf("route %d %s: duplicate path, already used by %s", i, &rc, prev)
		}
		seen[prefix] = &rc

		t.routes = append(t.routes, &rc)
		t.byMatch = append(t.byMatch, routeEntry{prefix: prefix, route: &rc})
	}

	sort.SliceStable(t.byMatch, func(i, j int) bool {
		return len(t.byMatch[i].prefix) > len(t.byMatch[j].prefix)
	})

	return t, nil
}

func trimTrailingSlash(p string) string {
	return strings.TrimRight(p, "/")
}

// Routes returns the routes in configuration order.
func (t *RouteTable) Routes() []*Route {
	return append([]*Route(nil), t.routes...)
}

// RouteLabel returns the path of the route matching req, or "none" if no route matches.
// It is used to partition request logs and metrics by route.
func (t *RouteTable) RouteLabel(req *http.Request) string {
	r, _, err := t.Match(req.URL)
	if err != nil {
		return "none"
	}
	return r.Path
}

// Match finds the route with the longest path prefix matching u
// and returns the upstream URL the request should be sent to.
// The prefix matches on path segment boundaries, /api matches /api and /api/users but not /apis.
func (t *RouteTable) Match(u *url.URL) (*Route, *url.URL, error) {
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, e := range t.byMatch {
		rest, ok := cutPathPrefix(p, e.prefix)
		if !ok {
			continue
		}
		return e.route, upstreamURL(e.route.Upstream, e.prefix, rest, u), nil
	}

	return nil, nil, ErrNoRoute
}

func cutPathPrefix(p, prefix string) (string, bool) {
	if prefix == "" {
		return p, true
	}
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := p[len(prefix):]
	if rest != "" && rest[0] != '/' {
		return "", false
	}
	return rest, true
}

// upstreamURL returns base with the path remaining after the route prefix
// and the raw query of the inbound URL appended to the base query.
func upstreamURL(base *url.URL, prefix, rest string, in *url.URL) *url.URL {
	out := *base
	out.User = base.User
	out.RawQuery = joinQuery(base.RawQuery, in.RawQuery)
	out.Fragment = ""

	r := &url.URL{Path: rest}
	if in.RawPath != "" {
		if ep := in.EscapedPath(); strings.HasPrefix(ep, prefix) {
			r.RawPath = ep[len(prefix):]
		}
	}

	out.Path, out.RawPath = joinURLPath(base, r)
	return &out
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	}
	return a + b
}

func joinURLPath(a, b *url.URL) (path, rawpath string) {
	if a.RawPath == "" && b.RawPath == "" {
		return singleJoiningSlash(a.Path, b.Path), ""
	}

	apath := a.EscapedPath()
	bpath := b.EscapedPath()

	aslash := strings.HasSuffix(apath, "/")
	bslash := strings.HasPrefix(bpath, "/")

	switch {
	case aslash && bslash:
		return a.Path + b.Path[1:], apath + bpath[1:]
	case !aslash && !bslash && bpath != "":
		return a.Path + "/" + b.Path, apath + "/" + bpath
	}
	return a.Path + b.Path, apath + bpath
}

func joinQuery(base, in string) string {
	if base == "" || in == "" {
		return base + in
	}
	return base + "&" + in
}
