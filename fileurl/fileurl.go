// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fileurl parses flag values that accept either a local path or a URL.
package fileurl

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseFilePathOrURL parses val as a URL with scheme file, data, http or https.
// A value without a scheme is a local file path, "-" means stdin.
// File URLs follow RFC 8089, both "file:/path" and "file:///path" forms are accepted.
func ParseFilePathOrURL(val string) (*url.URL, error) {
	if val == "" {
		return nil, fmt.Errorf("empty path")
	}
	if val == "-" {
		return &url.URL{Scheme: "file", Path: "-"}, nil
	}

	// Paths are not URL encoded, parsing them could mangle names containing % or #.
	if !strings.Contains(val, ":") {
		return &url.URL{Scheme: "file", Path: val}, nil
	}

	u, err := url.Parse(val)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" && u.Opaque != "" {
			u.Path, u.Opaque = u.Opaque, ""
		}
		u.OmitHost = false
	case "data", "http", "https":
	case "":
		u.Scheme = "file"
	default:
		return nil, fmt.Errorf("unsupported scheme %q, supported schemes are: file, data, http and https", u.Scheme)
	}

	return u, nil
}
