// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"github.com/saucelabs/mateproxy/bind"
	"github.com/saucelabs/mateproxy/command/ready"
	"github.com/saucelabs/mateproxy/command/run"
	"github.com/saucelabs/mateproxy/command/test/httpbin"
	"github.com/saucelabs/mateproxy/command/version"
	"github.com/saucelabs/mateproxy/utils/cobrautil"
	"github.com/spf13/cobra"
)

const (
	EnvPrefix          = "MATEPROXY"
	ConfigFileFlagName = "config-file"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mateproxy",
		Short: "HTTP reverse proxy with path routing, WebSocket tunneling and traffic capture",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cobrautil.BindAll(cmd, EnvPrefix, ConfigFileFlagName)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	bind.ConfigFile(cmd.PersistentFlags(), new(string))

	cmd.AddCommand(
		run.Command(),
		ready.Command(),
	)

	// Add test commands.
	test := &cobra.Command{
		Use:   "test",
		Short: "Run test servers",
	}
	test.AddCommand(
		httpbin.Command(),
	)
	cmd.AddCommand(test)

	// Add version command.
	cmd.AddCommand(version.Command())

	cobrautil.SetUsage(cmd, EnvPrefix)
	cobrautil.NoHelpSubcommand(cmd)

	return cmd
}
