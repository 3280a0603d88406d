// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"net/url"

	"github.com/saucelabs/mateproxy"
	"github.com/saucelabs/mateproxy/header"
)

func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Redacted()
}

// RedactRoute returns the route in flag syntax with the upstream password hidden.
func RedactRoute(r *mateproxy.Route) string {
	if r == nil {
		return ""
	}
	return r.FlagString()
}

func RedactHeader(h header.Header) string {
	return fmt.Sprintf("%q", h.String())
}

func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	return "xxxxx"
}
