// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package header

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		input    string
		expected Header
	}{
		{
			input: "-RemoveMe",
			expected: Header{
				Name:   "RemoveMe",
				Action: Remove,
			},
		},
		{
			input: "-RemoveMeByPrefix*",
			expected: Header{
				Name:   "RemoveMeByPrefix",
				Action: RemoveByPrefix,
			},
		},
		{
			input: "EmptyMe;",
			expected: Header{
				Name:   "EmptyMe",
				Action: Empty,
			},
		},
		{
			input: "AddMe:value",
			expected: Header{
				Name:   "AddMe",
				Action: Add,
				Value:  "value",
			},
		},
		{
			input: "AddMe: value: value",
			expected: Header{
				Name:   "AddMe",
				Action: Add,
				Value:  "value: value",
			},
		},
		{
			input: "SetMe:= value",
			expected: Header{
				Name:   "SetMe",
				Action: Set,
				Value:  "value",
			},
		},
		{
			input: `AddMe: value
`,
			expected: Header{
				Name:   "AddMe",
				Action: Add,
				Value:  "value",
			},
		},
	}
	for i := range tests {
		tc := &tests[i]
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseHeader(tc.input)
			if err != nil {
				t.Errorf("ParseHeader() error = %v", err)
			}
			if diff := cmp.Diff(got, tc.expected); diff != "" {
				t.Errorf("ParseHeader() diff = %v", diff)
			}
		})
	}
}

func TestParseHeaderError(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name:  "remove invalid name",
			input: "-(@Me)",
		},
		{
			name:  "add invalid name",
			input: "@Me: value",
		},
		{
			name: "add invalid value",
			input: `AddMe: value
value2`,
		},
	}

	for i := range tests {
		tc := &tests[i]
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHeader(tc.input)
			t.Log(err)
			if err == nil {
				t.Errorf("ParseHeader() error = %v", err)
			}
		})
	}
}

func TestHeadersApply(t *testing.T) {
	h := http.Header{
		"X-Remove":          {"a"},
		"X-Debug-One":       {"1"},
		"X-Debug-Two":       {"2"},
		"X-Set":             {"old", "older"},
		"X-Add":             {"first"},
		"X-Keep":            {"k"},
		"X-Empty-Me-Please": {"v"},
	}

	var hs Headers
	for _, s := range []string{"-X-Remove", "-X-Debug*", "X-Set:= new", "X-Add: second", "X-Empty-Me-Please;"} {
		m, err := ParseHeader(s)
		if err != nil {
			t.Fatal(err)
		}
		hs = append(hs, m)
	}
	hs.Apply(h)

	want := http.Header{
		"X-Set":             {"new"},
		"X-Add":             {"first", "second"},
		"X-Keep":            {"k"},
		"X-Empty-Me-Please": {""},
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Fatalf("unexpected headers (-want +got):\n%s", diff)
	}
}

func TestHeaderStringRoundTrip(t *testing.T) {
	for _, s := range []string{"-X-Remove", "-X-Debug*", "X-Empty;", "X-Add: v", "X-Set:= v"} {
		h, err := ParseHeader(s)
		if err != nil {
			t.Fatal(err)
		}
		if h.String() != s {
			t.Errorf("String() = %q, want %q", h.String(), s)
		}
	}
}

func TestRemoveHeadersByPrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		header   http.Header
		expected http.Header
	}{
		{
			name:   "smoke",
			prefix: http.CanonicalHeaderKey("RemoveMe"),
			header: http.Header{
				http.CanonicalHeaderKey("Remo"):             nil,
				http.CanonicalHeaderKey("RemoveMeByPrefix"): nil,
				http.CanonicalHeaderKey("RemoveMeBy"):       nil,
				http.CanonicalHeaderKey("RemoveMe"):         nil,
				http.CanonicalHeaderKey("DontRemoveMe"):     nil,
			},
			expected: http.Header{
				http.CanonicalHeaderKey("Remo"):         nil,
				http.CanonicalHeaderKey("DontRemoveMe"): nil,
			},
		},
	}

	for i := range tests {
		tc := &tests[i]
		t.Run(tc.name, func(t *testing.T) {
			h := tc.header.Clone()
			removeHeadersByPrefix(h, tc.prefix)

			if diff := cmp.Diff(h, tc.expected); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}
