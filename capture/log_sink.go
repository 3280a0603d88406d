// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/saucelabs/mateproxy/log"
	"go.uber.org/multierr"
)

// LogSink writes a single log line per exchange.
type LogSink struct {
	log log.Logger
}

func NewLogSink(log log.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Capture(_ context.Context, e *Exchange) error {
	req, reqErr := e.TransformedRequestBody()
	res, resErr := e.TransformedResponseBody()

	var errStr string
	if e.Err != nil {
		errStr = " error=" + e.Err.Error()
	}

	s.log.Infof("exchange id=%s route=%q method=%s url=%s upstream=%s status=%d duration_ms=%s request=[%s] response=[%s]%s",
		e.ID, e.Route, e.Method, e.URL, e.Upstream, e.StatusCode,
		humanize.FormatFloat("#,###.##", float64(e.Duration.Microseconds())/1000),
		describeBody(req, e.RequestBodyTruncated, len(e.RequestBody)),
		describeBody(res, e.ResponseBodyTruncated, len(e.ResponseBody)),
		errStr,
	)

	return transformErrors(reqErr, resErr)
}

func describeBody(b Body, truncated bool, rawSize int) string {
	if rawSize == 0 {
		return "empty"
	}

	var sb strings.Builder
	if b.ContentType != "" {
		sb.WriteString(b.ContentType)
		sb.WriteString(" ")
	}
	sb.WriteString(humanize.Bytes(uint64(len(b.Data))))
	if b.Transformed {
		fmt.Fprintf(&sb, " transformed from %s", humanize.Bytes(uint64(rawSize)))
	}
	if truncated {
		sb.WriteString(" truncated")
	}
	return sb.String()
}

func transformErrors(reqErr, resErr error) error {
	var err error
	if reqErr != nil {
		err = multierr.Append(err, fmt.Errorf("request body: %w", reqErr))
	}
	if resErr != nil {
		err = multierr.Append(err, fmt.Errorf("response body: %w", resErr))
	}
	return err
}
