// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"log"
	"os"
	"path"

	"github.com/saucelabs/mateproxy/command/mateproxy"
	"github.com/saucelabs/mateproxy/command/run"
	"github.com/saucelabs/mateproxy/utils/docsgen"
)

var docsDir = flag.String("docs-dir", "", "path to the docs directory")

func main() {
	flag.Parse()

	cliDir := path.Join(*docsDir, "content", "cli")
	promDir := path.Join(*docsDir, "content", "metrics")

	for _, dir := range []string{cliDir, promDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			log.Fatal(err)
		}
	}

	if err := docsgen.WriteCommandIndex(mateproxy.Command(), cliDir, "MateProxy"); err != nil {
		log.Fatal(err)
	}
	if err := docsgen.WriteCommandDoc(mateproxy.Command(), cliDir, mateproxy.EnvPrefix); err != nil {
		log.Fatal(err)
	}

	reg, err := run.Metrics()
	if err != nil {
		log.Fatal(err)
	}
	if err := docsgen.WriteCommandProm("mateproxy run", reg, promDir); err != nil {
		log.Fatal(err)
	}
}
