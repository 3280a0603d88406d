// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpWidth = 100

// SetUsage replaces the cobra usage output with one that prints flag value placeholders,
// defaults and environment variable names, with usage text wrapped below each flag.
func SetUsage(cmd *cobra.Command, envPrefix string) {
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		w := c.OutOrStderr()
		writeUsage(w, c, envPrefix)
		return nil
	})
}

func writeUsage(w io.Writer, c *cobra.Command, envPrefix string) {
	fmt.Fprintf(w, "Usage:\n  %s\n", c.UseLine())
	if c.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s [command]\n", c.CommandPath())
	}

	if c.Example != "" {
		fmt.Fprintf(w, "\nExamples:\n%s\n", c.Example)
	}

	if c.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\nAvailable Commands:\n")
		for _, sub := range c.Commands() {
			if sub.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-*s %s\n", c.NamePadding(), sub.Name(), sub.Short)
			}
		}
	}

	if c.HasAvailableLocalFlags() {
		fmt.Fprintf(w, "\nFlags:\n")
		WriteFlagUsages(w, c.LocalFlags(), envPrefix)
	}
	if c.HasAvailableInheritedFlags() {
		fmt.Fprintf(w, "\nGlobal Flags:\n")
		WriteFlagUsages(w, c.InheritedFlags(), envPrefix)
	}

	if c.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\nUse \"%s [command] --help\" for more information about a command.\n", c.CommandPath())
	}
}

// WriteFlagUsages writes help for every visible flag in fs.
// A usage string may start with a value placeholder in <> or [] e.g. "<path>Path to the log file.",
// the placeholder ends where the first sentence starts.
func WriteFlagUsages(w io.Writer, fs *pflag.FlagSet, envPrefix string) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}

		placeholder, usage := splitPlaceholder(f)

		var sb strings.Builder
		if f.Shorthand != "" {
			fmt.Fprintf(&sb, "  -%s, --%s", f.Shorthand, f.Name)
		} else {
			fmt.Fprintf(&sb, "      --%s", f.Name)
		}
		if placeholder != "" {
			sb.WriteString(" " + placeholder)
		}
		if def := f.DefValue; def != "" && def != "[]" && def != "false" && def != "0" && def != "0s" {
			fmt.Fprintf(&sb, " (default %s)", def)
		}
		if envPrefix != "" {
			fmt.Fprintf(&sb, " (env %s)", EnvName(envPrefix, f.Name))
		}
		fmt.Fprintln(w, sb.String())

		if f.Deprecated != "" {
			usage += " DEPRECATED: " + f.Deprecated
		}
		for _, line := range wrap(usage, helpWidth-10) {
			fmt.Fprintf(w, "\t%s\n", line)
		}
		fmt.Fprintln(w)
	})
}

func splitPlaceholder(f *pflag.Flag) (placeholder, usage string) {
	usage = strings.TrimSpace(f.Usage)
	if n := placeholderLen(usage); n > 0 {
		return usage[:n], strings.TrimSpace(usage[n:])
	}

	if f.Value.Type() == "bool" {
		return "", usage
	}
	name, usage := pflag.UnquoteUsage(f)
	if name == "" || name == "string" {
		name = "value"
	}
	return "<" + name + ">", usage
}

func placeholderLen(usage string) int {
	if usage == "" || (usage[0] != '<' && usage[0] != '[') {
		return 0
	}

	depth := 0
	for i, r := range usage {
		switch r {
		case '<', '[':
			depth++
		case '>', ']':
			depth--
		default:
			if depth == 0 && unicode.IsUpper(r) {
				return i
			}
		}
	}
	if depth != 0 {
		panic("unbalanced brackets in usage string: " + usage)
	}
	return len(usage)
}

func wrap(s string, width int) []string {
	var (
		lines []string
		line  strings.Builder
	)
	for _, word := range strings.Fields(s) {
		if line.Len() > 0 && line.Len()+1+len(word) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
