// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package capture

import (
	"net/http"
	"strings"
	"time"

	"github.com/saucelabs/mateproxy/bodytransform"
)

// Exchange is a snapshot of a proxied request and its response.
// Bodies are raw, as sent over the wire, and may be truncated.
type Exchange struct {
	ID         string
	Route      string
	Method     string
	URL        string
	Upstream   string
	RemoteAddr string
	Start      time.Time
	Duration   time.Duration

	RequestHeader        http.Header
	RequestBody          []byte
	RequestBodyTruncated bool

	StatusCode            int
	ResponseHeader        http.Header
	ResponseBody          []byte
	ResponseBodyTruncated bool

	// Err is the error that ended the exchange if any.
	Err error
}

// Body is the outcome of running a transform chain on a body.
type Body struct {
	// Transformed is true if any transformer in the chain succeeded.
	Transformed bool
	Data        []byte
	ContentType string
}

// TransformedRequestBody runs the default request chain on the request body.
func (e *Exchange) TransformedRequestBody() (Body, error) {
	return transformBody(bodytransform.DefaultRequestChain(), e.RequestHeader, e.RequestBody, e.RequestBodyTruncated)
}

// TransformedResponseBody runs the default response chain on the response body.
// Responses that cannot carry a body are returned as is, they may keep
// Content-Encoding with nothing to decode.
func (e *Exchange) TransformedResponseBody() (Body, error) {
	if !e.responseHasBody() {
		return rawBody(e.ResponseHeader, e.ResponseBody), nil
	}
	return transformBody(bodytransform.DefaultResponseChain(), e.ResponseHeader, e.ResponseBody, e.ResponseBodyTruncated)
}

func (e *Exchange) responseHasBody() bool {
	switch {
	case e.Method == http.MethodHead:
		return false
	case e.StatusCode >= 100 && e.StatusCode < 200:
		return false
	case e.StatusCode == http.StatusNoContent, e.StatusCode == http.StatusNotModified:
		return false
	}
	return true
}

// transformBody returns the raw body if the chain does not apply, fails or the body is truncated.
// A truncated compressed body cannot be decompressed, so it is never transformed.
func transformBody(c bodytransform.Chain, h http.Header, data []byte, truncated bool) (Body, error) {
	ct := h.Values("Content-Type")
	raw := rawBody(h, data)

	if truncated || !c.CanTransform(h, ct) {
		return raw, nil
	}

	res, ok, err := c.TryTransform(h, data, ct)
	if err != nil {
		return raw, err
	}
	if !ok {
		return raw, nil
	}

	return Body{
		Transformed: true,
		Data:        res.Body,
		ContentType: res.ContentType,
	}, nil
}

func rawBody(h http.Header, data []byte) Body {
	return Body{
		Data:        data,
		ContentType: strings.Join(h.Values("Content-Type"), ", "),
	}
}
