// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
)

// ErrorHeader is the header that is set on error responses with the error message.
const ErrorHeader = "X-Mateproxy-Error"

func (rp *ReverseProxy) errorResponse(req *http.Request, err error) *http.Response {
	handlers := []errorHandler{
		handleNoRoute,
		handleNetError,
		handleTimeout,
		handleTLSRecordHeader,
		handleTLSCertificateError,
	}

	var (
		code       int
		msg, label string
	)
	for _, h := range handlers {
		code, msg, label = h(req, err)
		if code != 0 {
			break
		}
	}
	if code == 0 {
		code = http.StatusBadGateway
		msg = "Upstream request failed"
		label = "unexpected_error"
	}

	rp.metrics.error(label)

	var body bytes.Buffer
	body.WriteString(msg)
	body.WriteString("\n")
	body.WriteString(err.Error())
	body.WriteString("\n")

	res := &http.Response{
		StatusCode:    code,
		Header:        make(http.Header),
		Body:          io.NopCloser(&body),
		ContentLength: int64(body.Len()),
		Request:       req,
	}
	res.Header.Set(ErrorHeader, err.Error())
	res.Header.Set("Content-Type", "text/plain; charset=utf-8")
	res.Header.Set("Content-Length", strconv.Itoa(body.Len()))
	res.Header.Set("X-Content-Type-Options", "nosniff")
	return res
}

type errorHandler func(*http.Request, error) (int, string, string)

func handleNoRoute(_ *http.Request, err error) (code int, msg, label string) {
	if errors.Is(err, ErrNoRoute) {
		code = http.StatusNotFound
		msg = "No route matches the request path"
		label = "no_route"
	}

	return
}

func handleNetError(_ *http.Request, err error) (code int, msg, label string) {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			code = http.StatusGatewayTimeout
			msg = "Timed out connecting to upstream"
		} else {
			code = http.StatusBadGateway
			msg = "Failed to connect to upstream"
		}
		label = "net_" + netErr.Op
	}

	return
}

func handleTimeout(_ *http.Request, err error) (code int, msg, label string) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		code = http.StatusGatewayTimeout
		msg = "Timed out waiting for upstream"
		label = "timeout"
	}

	return
}

func handleTLSRecordHeader(_ *http.Request, err error) (code int, msg, label string) {
	var headerErr *tls.RecordHeaderError
	if errors.As(err, &headerErr) {
		code = http.StatusBadGateway
		msg = "TLS handshake failed"
		label = "tls_record_header"
	}

	return
}

func handleTLSCertificateError(_ *http.Request, err error) (code int, msg, label string) {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		code = http.StatusBadGateway
		msg = "TLS handshake failed"
		label = "tls_certificate"
	}

	return
}
