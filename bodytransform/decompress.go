// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bodytransform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

const DefaultMaxDecompressedSize = 64 << 20

var (
	// ErrCorrupt is returned when a compressed body cannot be decoded.
	ErrCorrupt = errors.New("corrupt compressed body")
	// ErrTooLarge is returned when a decompressed body exceeds Decompressor.MaxSize.
	ErrTooLarge = errors.New("decompressed body too large")
)

// Decompressor decodes gzip and deflate bodies based on the Content-Encoding header.
// The media type is not changed.
type Decompressor struct {
	// MaxSize limits the size of a decompressed body, zero means no limit.
	MaxSize int64
}

var _ Transformer = (*Decompressor)(nil)

func (d *Decompressor) CanTransform(h http.Header, _ []string) bool {
	return contentEncoding(h) != ""
}

func (d *Decompressor) TryTransform(h http.Header, body []byte, contentType []string) (Result, bool, error) {
	enc := contentEncoding(h)
	if enc == "" {
		return Result{}, false, nil
	}

	var (
		r   io.ReadCloser
		err error
	)
	switch enc {
	case "gzip":
		r, err = gzip.NewReader(bytes.NewReader(body))
	case "deflate":
		r = flate.NewReader(bytes.NewReader(body))
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, enc, err)
	}
	defer r.Close()

	out, err := d.readAll(r, len(body))
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return Result{}, false, err
		}
		return Result{}, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, enc, err)
	}

	ct := strings.Join(contentType, ", ")
	return Result{
		Body:                out,
		OriginalContentType: ct,
		ContentType:         ct,
	}, true, nil
}

func (d *Decompressor) readAll(r io.Reader, sizeHint int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(2 * sizeHint)

	if d.MaxSize <= 0 {
		_, err := buf.ReadFrom(r)
		return buf.Bytes(), err
	}

	n, err := buf.ReadFrom(io.LimitReader(r, d.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if n > d.MaxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, d.MaxSize)
	}
	return buf.Bytes(), nil
}

// contentEncoding returns "gzip" or "deflate" if the header carries exactly
// one supported Content-Encoding value, otherwise it returns an empty string.
func contentEncoding(h http.Header) string {
	v := h.Values("Content-Encoding")
	if len(v) != 1 {
		return ""
	}

	enc := strings.ToLower(strings.TrimSpace(v[0]))
	switch enc {
	case "gzip", "deflate":
		return enc
	default:
		return ""
	}
}
