// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httpbin

import (
	"io"
)

// cycleReader repeats pattern forever, wrap it with io.LimitReader.
type cycleReader struct {
	pattern []byte
	off     int
}

func (c *cycleReader) Read(p []byte) (int, error) {
	if len(c.pattern) == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) {
		m := copy(p[n:], c.pattern[c.off:])
		n += m
		c.off = (c.off + m) % len(c.pattern)
	}
	return n, nil
}

// patternBody returns n bytes of pattern repeated.
func patternBody(pattern string, n int64) io.Reader {
	return io.LimitReader(&cycleReader{pattern: []byte(pattern)}, n)
}
