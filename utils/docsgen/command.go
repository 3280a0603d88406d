// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package docsgen generates markdown reference pages for commands and their metrics.
package docsgen

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/saucelabs/mateproxy/utils/cobrautil"
	"github.com/spf13/cobra"
)

// WriteCommandIndex writes toc.md listing all documented subcommands of root.
func WriteCommandIndex(root *cobra.Command, cliDir, title string) error {
	f, err := os.Create(path.Join(cliDir, "toc.md"))
	if err != nil {
		return err
	}

	fmt.Fprintf(f, "# %s CLI\n\n", title)
	walkCommand(root, func(cmd *cobra.Command) {
		if documented(cmd) {
			fmt.Fprintf(f, "- [%s](%s) - %s\n", cmd.CommandPath(), fileName(cmd, ".md"), cmd.Short)
		}
	})

	return f.Close()
}

// WriteCommandDoc writes a page for cmd and each of its subcommands that have flags.
func WriteCommandDoc(cmd *cobra.Command, cliDir, envPrefix string) error {
	for _, c := range cmd.Commands() {
		if err := WriteCommandDoc(c, cliDir, envPrefix); err != nil {
			return err
		}
	}

	if !documented(cmd) {
		return nil
	}

	f, err := os.Create(path.Join(cliDir, fileName(cmd, ".md")))
	if err != nil {
		return err
	}
	writeMarkdownDoc(f, cmd, envPrefix)

	return f.Close()
}

func writeMarkdownDoc(w io.Writer, cmd *cobra.Command, envPrefix string) {
	fmt.Fprintf(w, "# %s\n\n", cmd.CommandPath())

	if cmd.Long != "" {
		fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(cmd.Long))
	} else if cmd.Short != "" {
		fmt.Fprintf(w, "%s.\n\n", cmd.Short)
	}

	fmt.Fprintf(w, "## Usage\n\n```\n%s\n```\n\n", cmd.UseLine())

	if cmd.Example != "" {
		fmt.Fprintf(w, "## Examples\n\n```\n%s\n```\n\n", strings.TrimRight(cmd.Example, "\n"))
	}

	fmt.Fprintf(w, "## Flags\n\n```\n")
	cobrautil.WriteFlagUsages(w, cmd.NonInheritedFlags(), envPrefix)
	fmt.Fprintf(w, "```\n\n")

	fmt.Fprintf(w, "All flags can be set in a YAML, JSON or TOML file passed with `--config-file`, "+
		"keys are the flag names without the leading dashes.\n")
}

func documented(cmd *cobra.Command) bool {
	return cmd.IsAvailableCommand() && cmd.HasAvailableLocalFlags()
}

func fileName(cmd *cobra.Command, ext string) string {
	return strings.ReplaceAll(cmd.CommandPath(), " ", "_") + ext
}

func walkCommand(cmd *cobra.Command, f func(cmd *cobra.Command)) {
	f(cmd)
	for _, cmd := range cmd.Commands() {
		walkCommand(cmd, f)
	}
}
