// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package version holds build information set with -ldflags, e.g.
//
//	-X github.com/saucelabs/mateproxy/internal/version.Version=1.0.0
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version = "devel"
	Time    = "unknown"
	Commit  = "unknown"
)

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fillFromBuildSettings(bi.Settings)
}

// fillFromBuildSettings uses VCS data recorded by the go tool for values not set with -ldflags.
func fillFromBuildSettings(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" {
				Commit = s.Value
			}
		case "vcs.time":
			if Time == "unknown" {
				Time = s.Value
			}
		}
	}
}

// String returns build information in tabular form.
func String() string {
	var sb strings.Builder
	fmt.Fprintln(&sb, "Version:\t", Version)
	fmt.Fprintln(&sb, "Built time:\t", Time)
	fmt.Fprintln(&sb, "Git commit:\t", Commit)
	fmt.Fprintln(&sb, "Go Arch:\t", runtime.GOARCH)
	fmt.Fprintln(&sb, "Go OS:\t\t", runtime.GOOS)
	fmt.Fprintln(&sb, "Go Version:\t", runtime.Version())
	return sb.String()
}
