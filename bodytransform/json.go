// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bodytransform

import (
	"net/http"
	"regexp"
)

const jsonContentType = "application/json"

var jsonSuffixRegex = regexp.MustCompile(`(?i)^application/[^;\s/]+\+json\s*($|;)`)

// JSONContentType reports vendor JSON media types such as application/vnd.api+json
// as application/json. The body is returned unchanged.
//
// It applies only if the message carries exactly one Content-Type value.
type JSONContentType struct{}

var _ Transformer = JSONContentType{}

func (JSONContentType) CanTransform(_ http.Header, contentType []string) bool {
	return len(contentType) == 1 && jsonSuffixRegex.MatchString(contentType[0])
}

func (t JSONContentType) TryTransform(h http.Header, body []byte, contentType []string) (Result, bool, error) {
	if !t.CanTransform(h, contentType) {
		return Result{}, false, nil
	}

	return Result{
		Body:                body,
		OriginalContentType: contentType[0],
		ContentType:         jsonContentType,
	}, true, nil
}
