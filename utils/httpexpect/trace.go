// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httpexpect

import (
	"net/http/httptrace"
	"net/textproto"
	"testing"
)

// newTestClientTrace logs connection reuse and request progress.
// It helps to tell if a failing request went through a pooled connection.
func newTestClientTrace(t *testing.T) *httptrace.ClientTrace {
	t.Helper()
	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			t.Logf("GetConn: %s", hostPort)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			t.Logf("GotConn: local=%s reused=%t idle=%s", info.Conn.LocalAddr(), info.Reused, info.IdleTime)
		},
		ConnectDone: func(network, addr string, err error) {
			t.Logf("ConnectDone: network=%s addr=%s err=%v", network, addr, err)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			t.Logf("WroteRequest: err=%v", info.Err)
		},
		Got1xxResponse: func(code int, header textproto.MIMEHeader) error {
			t.Logf("Got1xxResponse: code=%d header=%v", code, header)
			return nil
		},
		GotFirstResponseByte: func() {
			t.Logf("GotFirstResponseByte")
		},
	}
}
