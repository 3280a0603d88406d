// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package run

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMetrics(t *testing.T) {
	reg, err := Metrics()
	if err != nil {
		t.Fatal(err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"mateproxy_version",
		"go_env_gomaxprocs",
		"go_goroutines",
	} {
		if !names[want] {
			t.Errorf("metric %s not found", want)
		}
	}
	for name := range names {
		if !strings.HasPrefix(name, "mateproxy_") && !strings.HasPrefix(name, "go_") && !strings.HasPrefix(name, "process_") {
			t.Errorf("unexpected metric namespace: %s", name)
		}
	}
}

func dryRun(t *testing.T, args ...string) error {
	t.Helper()

	cmd := Command()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--dry-run",
		"--address", "localhost:0",
		"--api-address", "localhost:0",
		"--log-file", filepath.Join(t.TempDir(), "mateproxy.log"),
	}, args...))

	return cmd.Execute()
}

func TestDryRun(t *testing.T) {
	if err := dryRun(t, "-r", "/api=http://localhost:8081;name=api", "-r", "/=http://localhost:8082"); err != nil {
		t.Fatal(err)
	}
}

func TestDryRunRoutesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "routes.yaml")
	routes := `routes:
  - name: api
    path: /api
    upstream: http://localhost:8081
  - path: /ws
    upstream: ws://localhost:9000
    host: preserve-host
`
	if err := os.WriteFile(p, []byte(routes), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := dryRun(t, "--routes-file", p); err != nil {
		t.Fatal(err)
	}
}

func TestDryRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "no routes",
		},
		{
			name: "duplicate route",
			args: []string{"-r", "/api=http://a", "-r", "/api=http://b"},
		},
		{
			name: "missing routes file",
			args: []string{"-r", "/=http://a", "--routes-file", "/nonexistent/routes.yaml"},
		},
		{
			name: "https without certificate",
			args: []string{"-r", "/=http://a", "--protocol", "https"},
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			if err := dryRun(t, tc.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
