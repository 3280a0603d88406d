// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type DialConfig struct {
	// DialTimeout is the maximum amount of time a dial will wait for
	// connect to complete.
	//
	// With or without a timeout, the operating system may impose
	// its own earlier timeout. For instance, TCP timeouts are
	// often around 3 minutes.
	DialTimeout time.Duration

	// KeepAlive specifies the interval between TCP keep-alive probes.
	// Zero disables keep-alive probes.
	KeepAlive time.Duration

	PromNamespace string
	PromRegistry  prometheus.Registerer
}

func DefaultDialConfig() *DialConfig {
	return &DialConfig{
		DialTimeout: 10 * time.Second,
		KeepAlive:   15 * time.Second,
	}
}

// Dialer dials upstream connections and keeps track of them in metrics.
type Dialer struct {
	nd      net.Dialer
	metrics *upstreamConnMetrics
}

func NewDialer(cfg *DialConfig) *Dialer {
	ka := cfg.KeepAlive
	if ka == 0 {
		ka = -1
	}

	return &Dialer{
		nd: net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: ka,
		},
		metrics: newUpstreamConnMetrics(cfg.PromRegistry, cfg.PromNamespace),
	}
}

func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.nd.DialContext(ctx, network, address)
	if err != nil {
		d.metrics.dialFailed(address, err)
		return nil, err
	}

	d.metrics.connOpened(address)
	return &trackedConn{
		Conn: conn,
		onClose: func() {
			d.metrics.connClosed(address)
		},
	}, nil
}

// trackedConn calls onClose once when the connection is closed.
type trackedConn struct {
	net.Conn
	onClose func()
	once    sync.Once
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.onClose)
	return err
}

// CloseWrite shuts down the writing side of the connection if supported.
func (c *trackedConn) CloseWrite() error {
	if cw, ok := c.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}
