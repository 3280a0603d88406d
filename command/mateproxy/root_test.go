// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommandTree(t *testing.T) {
	cmd := Command()

	for _, path := range [][]string{
		{"run"},
		{"ready"},
		{"version"},
		{"test", "httpbin"},
	} {
		c, _, err := cmd.Find(path)
		if err != nil {
			t.Fatalf("%v: %v", path, err)
		}
		if c.Name() != path[len(path)-1] {
			t.Errorf("%v: found %s", path, c.Name())
		}
	}
}

func TestRunUsageShowsEnv(t *testing.T) {
	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"--route",
		"(env MATEPROXY_ROUTE)",
		"--config-file",
		"(env MATEPROXY_API_ADDRESS)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("usage does not contain %q", want)
		}
	}
}
