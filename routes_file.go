// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.yaml.in/yaml/v2"
)

// RoutesFile is the YAML document describing routes, e.g.
//
//	routes:
//	  - name: api
//	    path: /api
//	    upstream: http://backend:8080
//	    copy_xforwarded: false
//	    host: preserve-host
type RoutesFile struct {
	Routes []RouteSpec `yaml:"routes"`
}

// RouteSpec is a route as written in a routes file.
// Unset X-Forwarded options take the defaults of DefaultRoute.
type RouteSpec struct {
	Name           string `yaml:"name"`
	Path           string `yaml:"path"`
	Upstream       string `yaml:"upstream"`
	CopyXForwarded *bool  `yaml:"copy_xforwarded"`
	AddXForwarded  *bool  `yaml:"add_xforwarded"`
	Host           string `yaml:"host"`
	Insecure       bool   `yaml:"insecure"`
}

func (s *RouteSpec) Route() (*Route, error) {
	r := DefaultRoute()
	r.Name = s.Name
	r.Path = s.Path
	r.InsecureSkipVerify = s.Insecure

	u, err := ParseUpstreamURL(s.Upstream)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	r.Upstream = u

	if s.CopyXForwarded != nil {
		r.CopyXForwardedHeaders = *s.CopyXForwarded
	}
	if s.AddXForwarded != nil {
		r.AddXForwardedHeaders = *s.AddXForwarded
	}
	if err := r.HostHeaderMode.UnmarshalText([]byte(s.Host)); err != nil {
		return nil, err
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// ParseRoutesYAML decodes a routes file, unknown fields are rejected.
func ParseRoutesYAML(b []byte) ([]*Route, error) {
	var f RoutesFile
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, err
	}

	routes := make([]*Route, 0, len(f.Routes))
	for i := range f.Routes {
		r, err := f.Routes[i].Route()
		if err != nil {
			return nil, fmt.Errorf("route %d path=%q: %w", i, f.Routes[i].Path, err)
		}
		routes = append(routes, r)
	}

	return routes, nil
}

// ReadRoutes reads a routes file from a local file, stdin, data URL or http(s) URL.
func ReadRoutes(ctx context.Context, u *url.URL, rt http.RoundTripper) ([]*Route, error) {
	b, err := ReadURL(ctx, u, rt)
	if err != nil {
		return nil, fmt.Errorf("read routes file %s: %w", u.Redacted(), err)
	}

	routes, err := ParseRoutesYAML(b)
	if err != nil {
		return nil, fmt.Errorf("parse routes file %s: %w", u.Redacted(), err)
	}

	return routes, nil
}
