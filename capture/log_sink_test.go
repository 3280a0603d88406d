// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package capture

import (
	"bytes"
	"context"
	"strings"
	"testing"

	mlog "github.com/saucelabs/mateproxy/log"
	"github.com/saucelabs/mateproxy/log/stdlog"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := stdlog.New(mlog.DefaultConfig(), stdlog.WithWriter(&buf))

	e := testExchange("abc")
	e.ResponseBody = bytes.Repeat([]byte("x"), 2000)
	e.ResponseHeader.Set("Content-Type", "text/plain")
	e.ResponseBodyTruncated = true

	if err := NewLogSink(l).Capture(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, s := range []string{
		"id=abc",
		`route="api"`,
		"status=200",
		"duration_ms=1,500",
		"request=[empty]",
		"response=[text/plain 2.0 kB truncated]",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("expected %q in %q", s, out)
		}
	}
}

func TestDescribeBodyTransformed(t *testing.T) {
	b := Body{Transformed: true, Data: make([]byte, 3000), ContentType: "application/json"}
	if got, want := describeBody(b, false, 1000), "application/json 3.0 kB transformed from 1.0 kB"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
