// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bodytransform normalizes captured HTTP message bodies.
// Transformers never touch the bytes sent over the wire, they work on a copy
// handed to capture sinks.
package bodytransform

import (
	"net/http"
)

// Result is the outcome of a successful transformation.
type Result struct {
	Body                []byte
	OriginalContentType string
	ContentType         string
}

// Transformer is a single body transformation step.
//
// The header is the header of the message the body belongs to,
// contentType holds all Content-Type values as received.
type Transformer interface {
	CanTransform(h http.Header, contentType []string) bool
	// TryTransform returns false if the transformer does not apply.
	// An error is returned only if the transformer applies but the body is broken.
	TryTransform(h http.Header, body []byte, contentType []string) (Result, bool, error)
}

// Chain applies transformers in order, each one sees the output of the
// last successful one.
type Chain []Transformer

var _ Transformer = Chain(nil)

// CanTransform returns true if any of the transformers can transform the body
// given the original content type.
func (c Chain) CanTransform(h http.Header, contentType []string) bool {
	for _, t := range c {
		if t.CanTransform(h, contentType) {
			return true
		}
	}
	return false
}

func (c Chain) TryTransform(h http.Header, body []byte, contentType []string) (Result, bool, error) {
	var (
		last        Result
		transformed bool
	)

	for _, t := range c {
		res, ok, err := t.TryTransform(h, body, contentType)
		if err != nil {
			return Result{}, false, err
		}
		if !ok {
			continue
		}

		last = res
		transformed = true
		body = res.Body
		contentType = []string{res.ContentType}
	}

	return last, transformed, nil
}

// DefaultRequestChain returns the chain used for captured request bodies.
func DefaultRequestChain() Chain {
	return Chain{
		JSONContentType{},
	}
}

// DefaultResponseChain returns the chain used for captured response bodies.
// Decompression runs first so that the content type check sees the real payload.
func DefaultResponseChain() Chain {
	return Chain{
		&Decompressor{MaxSize: DefaultMaxDecompressedSize},
		JSONContentType{},
	}
}
