// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ready

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/spf13/cobra"
)

type command struct {
	apiAddr string
	timeout time.Duration
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	host, port, err := net.SplitHostPort(c.apiAddr)
	if err != nil {
		return err
	}
	if host == "" {
		host = "localhost"
	}

	tr := &http.Transport{DisableKeepAlives: true}
	defer tr.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+net.JoinHostPort(host, port)+"/readyz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := tr.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, err := httputil.DumpResponse(resp, true)
		if err != nil {
			return err
		}
		if _, err := cmd.ErrOrStderr().Write(b); err != nil {
			return err
		}

		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func Command() *cobra.Command {
	c := command{
		apiAddr: "localhost:10000",
		timeout: 2 * time.Second,
	}

	cmd := &cobra.Command{
		Use:   "ready [--api-address <host:port>] [flags]",
		Short: "Readiness probe for MateProxy",
		Long:  long,
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	fs.StringVar(&c.apiAddr,
		"api-address", c.apiAddr, "<host:port>"+
			"The API server address. ")
	fs.DurationVar(&c.timeout,
		"timeout", c.timeout,
		"The maximum amount of time to wait for the response. ")

	return cmd
}

const long = `This is equivalent to calling the /readyz endpoint on the MateProxy API server.
The probe fails if any of the proxy dependencies is not available, e.g. the Redis server used for capture.`
