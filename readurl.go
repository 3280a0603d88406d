// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// maxReadURLSize bounds configuration documents read with ReadURL.
const maxReadURLSize = 10 << 20

// ReadURL can read base64 encoded data, local file, http or https URL or stdin.
// The transport is only used for http and https URLs.
func ReadURL(ctx context.Context, u *url.URL, rt http.RoundTripper) ([]byte, error) {
	switch u.Scheme {
	case "data":
		return readData(u)
	case "file":
		return readFile(u)
	case "http", "https":
		return readHTTP(ctx, u, rt)
	default:
		return nil, fmt.Errorf("unsupported scheme %q, supported schemes are: data, file, http and https", u.Scheme)
	}
}

func readData(u *url.URL) ([]byte, error) {
	v := strings.TrimPrefix(u.Opaque, "//")

	if prefix, data, ok := strings.Cut(v, ","); ok {
		if prefix != "base64" {
			return nil, errors.New("invalid data URI, the only supported format is: data:base64,<encoded data>")
		}
		v = data
	}

	return base64.StdEncoding.DecodeString(v)
}

func readFile(u *url.URL) ([]byte, error) {
	switch {
	case u.Host != "":
		return nil, fmt.Errorf("invalid file URL %q, host is not allowed", u.String())
	case u.User != nil:
		return nil, fmt.Errorf("invalid file URL %q, user is not allowed", u.String())
	case u.RawQuery != "" || u.Fragment != "":
		return nil, fmt.Errorf("invalid file URL %q, query and fragment are not allowed", u.String())
	case u.Path == "":
		return nil, fmt.Errorf("invalid file URL %q, path is empty", u.String())
	}

	if u.Path == "-" {
		return readLimited(os.Stdin)
	}

	f, err := os.Open(u.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLimited(f)
}

func readHTTP(ctx context.Context, u *url.URL, rt http.RoundTripper) ([]byte, error) {
	if rt == nil {
		rt = http.DefaultTransport
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	res, err := rt.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", res.StatusCode)
	}

	return readLimited(res.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxReadURLSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxReadURLSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxReadURLSize)
	}
	return b, nil
}
