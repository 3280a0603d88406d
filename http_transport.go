// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"
)

type HTTPTransportConfig struct {
	DialConfig

	// TLSHandshakeTimeout specifies the maximum amount of time to
	// wait for a TLS handshake. Zero means no timeout.
	TLSHandshakeTimeout time.Duration

	// InsecureSkipVerify is the default for routes that do not set it explicitly.
	InsecureSkipVerify bool

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. Zero means no limit.
	MaxIdleConns int

	// MaxIdleConnsPerHost, if non-zero, controls the maximum idle
	// (keep-alive) connections to keep per-host. If zero,
	// DefaultMaxIdleConnsPerHost is used.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost optionally limits the total number of
	// connections per host, including connections in the dialing,
	// active, and idle states. On limit violation, dials will block.
	//
	// Zero means no limit.
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle
	// (keep-alive) connection will remain idle before closing
	// itself. It must be positive, pooled connections are not kept forever.
	IdleConnTimeout time.Duration

	// ResponseHeaderTimeout, if non-zero, specifies the amount of
	// time to wait for a server's response headers after fully
	// writing the request (including its body, if any). This
	// time does not include the time to read the response body.
	ResponseHeaderTimeout time.Duration

	// ExpectContinueTimeout, if non-zero, specifies the amount of
	// time to wait for a server's first response headers after fully
	// writing the request headers if the request has an
	// "Expect: 100-continue" header. Zero means no timeout and
	// causes the body to be sent immediately, without
	// waiting for the server to approve.
	// This time does not include the time to send the request header.
	ExpectContinueTimeout time.Duration
}

func DefaultHTTPTransportConfig() *HTTPTransportConfig {
	return &HTTPTransportConfig{
		DialConfig:            *DefaultDialConfig(),
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   512,
	}
}

func (c *HTTPTransportConfig) Validate() error {
	if c.IdleConnTimeout <= 0 {
		return errors.New("idle connection timeout must be positive")
	}
	return nil
}

// NewHTTPTransport returns a transport for regular requests.
// Response bodies are passed through as received, the transport never decompresses them.
// Redirects and cookies are not handled by http.Transport so they reach the client unmodified.
func NewHTTPTransport(cfg *HTTPTransportConfig, d *Dialer, insecure bool) *http.Transport {
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           d.DialContext,
		TLSClientConfig:       newTLSClientConfig(insecure),
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DisableCompression:    true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// NewTunnelTransport returns a transport for WebSocket handshakes.
// Connections are never pooled, after a successful handshake they belong to the tunnel.
// HTTP/2 is disabled as the upgrade mechanism is HTTP/1.1 only.
func NewTunnelTransport(cfg *HTTPTransportConfig, d *Dialer, insecure bool) *http.Transport {
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           d.DialContext,
		TLSClientConfig:       newTLSClientConfig(insecure),
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		DisableCompression:    true,
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     false,
	}
}

func newTLSClientConfig(insecure bool) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: insecure, //nolint:gosec // explicitly enabled by the user
	}
}

// RouteTransport returns the round tripper to use for the route.
type RouteTransport func(r *Route) http.RoundTripper

// TLSPolicyTransport returns a RouteTransport that picks one of two transports
// depending on the route InsecureSkipVerify setting.
// Both transports are created upfront and shared by all routes.
func TLSPolicyTransport(secure, insecure http.RoundTripper) RouteTransport {
	return func(r *Route) http.RoundTripper {
		if r.InsecureSkipVerify {
			return insecure
		}
		return secure
	}
}

// NewRouteTransports creates transports for regular requests and WebSocket handshakes.
// All of them share a single dialer.
// Routes use the insecure transports if they set InsecureSkipVerify,
// if cfg.InsecureSkipVerify is set all transports skip verification.
func NewRouteTransports(cfg *HTTPTransportConfig) (rt, tunnel RouteTransport) {
	d := NewDialer(&cfg.DialConfig)
	rt = TLSPolicyTransport(
		NewHTTPTransport(cfg, d, cfg.InsecureSkipVerify),
		NewHTTPTransport(cfg, d, true),
	)
	tunnel = TLSPolicyTransport(
		NewTunnelTransport(cfg, d, cfg.InsecureSkipVerify),
		NewTunnelTransport(cfg, d, true),
	)
	return
}

// StaticTransport returns a RouteTransport that uses rt for all routes.
func StaticTransport(rt http.RoundTripper) RouteTransport {
	return func(*Route) http.RoundTripper {
		return rt
	}
}
