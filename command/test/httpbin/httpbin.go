// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httpbin

import (
	"fmt"

	"github.com/saucelabs/mateproxy"
	"github.com/saucelabs/mateproxy/bind"
	"github.com/saucelabs/mateproxy/httplog"
	"github.com/saucelabs/mateproxy/log"
	"github.com/saucelabs/mateproxy/log/stdlog"
	"github.com/saucelabs/mateproxy/runctx"
	"github.com/saucelabs/mateproxy/utils/cobrautil"
	"github.com/saucelabs/mateproxy/utils/httpbin"
	"github.com/spf13/cobra"
)

type command struct {
	httpServerConfig *mateproxy.HTTPServerConfig
	logConfig        *log.Config
}

func (c *command) runE(cmd *cobra.Command, _ []string) (cmdErr error) {
	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	logger := stdlog.New(c.logConfig)

	defer func() {
		if cmdErr != nil {
			logger.Errorf("fatal error exiting: %s", cmdErr)
			cmd.SilenceErrors = true
		}
	}()

	cfg, err := cobrautil.FlagsDescriber{
		Format:          cobrautil.Plain,
		ShowChangedOnly: true,
		ShowHidden:      true,
	}.DescribeFlags(cmd.Flags())
	if err != nil {
		return err
	}
	if len(cfg) > 0 {
		logger.Infof("configuration\n%s", cfg)
	}

	s, err := mateproxy.NewHTTPServer(c.httpServerConfig, httpbin.Handler(), logger.Named("server"))
	if err != nil {
		return err
	}
	defer s.Close()

	return runctx.NewGroup(s.Run).Run()
}

func Command() *cobra.Command {
	c := command{
		httpServerConfig: mateproxy.DefaultHTTPServerConfig(),
		logConfig:        log.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "httpbin [--protocol <http|https>] [--address <host:port>] [flags]",
		Short: "Start HTTP(S) server that serves a httpbin.org like API",
		Long:  fmt.Sprintf(long, "`/anything`, `/status/{code}`, `/delay/{ms}`, `/gzip`, `/ws/echo`"),
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	bind.HTTPServerConfig(fs, c.httpServerConfig, "", mateproxy.HTTPScheme, mateproxy.HTTPSScheme)
	bind.HTTPLogConfig(fs, []bind.NamedParam[httplog.Mode]{
		{Name: "server", Param: &c.httpServerConfig.LogHTTPMode},
	})
	bind.LogConfig(fs, c.logConfig)

	bind.AutoMarkFlagFilename(cmd)

	return cmd
}

const long = `The server is meant to be used as an upstream when testing MateProxy routes.
It serves endpoints such as %s.`
