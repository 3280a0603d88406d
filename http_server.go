// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/mateproxy/httplog"
	"github.com/saucelabs/mateproxy/log"
	"github.com/saucelabs/mateproxy/middleware"
)

type Scheme string

const (
	HTTPScheme  Scheme = "http"
	HTTPSScheme Scheme = "https"
)

func (s *Scheme) UnmarshalText(text []byte) error {
	switch v := Scheme(text); v {
	case HTTPScheme, HTTPSScheme:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid protocol %q, supported protocols are: http, https", text)
	}
}

func (s Scheme) String() string {
	return string(s)
}

type HTTPServerConfig struct {
	Protocol Scheme
	Addr     string
	CertFile string
	KeyFile  string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout is the time given to in-flight requests to finish when the server is stopped.
	// When it elapses the remaining connections are closed.
	ShutdownTimeout time.Duration

	// RouteLabel, if set, labels access log lines and request metrics with the route serving the request.
	RouteLabel func(*http.Request) string

	LogHTTPMode   httplog.Mode
	PromNamespace string
	PromRegistry  prometheus.Registerer
	PromOpts      []middleware.PrometheusOption
}

func DefaultHTTPServerConfig() *HTTPServerConfig {
	return &HTTPServerConfig{
		Protocol:          HTTPScheme,
		Addr:              ":8080",
		ReadHeaderTimeout: time.Minute,
		IdleTimeout:       time.Hour,
		ShutdownTimeout:   30 * time.Second,
		LogHTTPMode:       httplog.Errors,
	}
}

func (c *HTTPServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("address is required")
	}
	switch c.Protocol {
	case HTTPScheme:
	case HTTPSScheme:
		if c.CertFile == "" || c.KeyFile == "" {
			return errors.New("cert file and key file are required for https")
		}
		for _, f := range []string{c.CertFile, c.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return fmt.Errorf("tls: %w", err)
			}
		}
	default:
		return fmt.Errorf("invalid protocol %q", c.Protocol)
	}
	if c.ReadHeaderTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must not be negative")
	}
	return nil
}

// HTTPServer serves a handler with access logging and Prometheus metrics.
// The listener is opened in NewHTTPServer so that Addr is known before Run.
type HTTPServer struct {
	config   HTTPServerConfig
	log      log.Logger
	srv      *http.Server
	listener net.Listener
}

func NewHTTPServer(cfg *HTTPServerConfig, h http.Handler, log log.Logger) (*HTTPServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		logOpts  []httplog.Option
		promOpts = cfg.PromOpts
	)
	if cfg.RouteLabel != nil {
		logOpts = append(logOpts, httplog.WithRouteLabel(cfg.RouteLabel))
		promOpts = append(promOpts[:len(promOpts):len(promOpts)], middleware.WithLabel("route", cfg.RouteLabel))
	}

	lh := httplog.NewLogger(log.Infof, cfg.LogHTTPMode, logOpts...).LogFunc().Wrap(h)
	ph := middleware.NewPrometheus(cfg.PromRegistry, cfg.PromNamespace, promOpts...).Wrap(lh)

	hs := &HTTPServer{
		config: *cfg,
		log:    log,
		srv: &http.Server{
			Handler:           ph,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}

	if cfg.Protocol == HTTPSScheme {
		hs.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open listener on address %s: %w", cfg.Addr, err)
	}
	hs.listener = l

	return hs, nil
}

// RegisterOnShutdown registers a function to call when the server is stopped.
// It is used to close connections that were hijacked from the server.
func (hs *HTTPServer) RegisterOnShutdown(f func()) {
	hs.srv.RegisterOnShutdown(f)
}

func (hs *HTTPServer) Run(ctx context.Context) error {
	hs.log.Infof("HTTP server listen address=%s protocol=%s", hs.listener.Addr(), hs.config.Protocol)

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), hs.config.ShutdownTimeout)
		defer cancel()

		err := hs.srv.Shutdown(sctx)
		if errors.Is(err, context.DeadlineExceeded) {
			hs.log.Infof("graceful shutdown timed out after %s, closing connections", hs.config.ShutdownTimeout)
			err = hs.srv.Close()
		}
		errCh <- err
	}()

	var srvErr error
	switch hs.config.Protocol {
	case HTTPSScheme:
		srvErr = hs.srv.ServeTLS(hs.listener, hs.config.CertFile, hs.config.KeyFile)
	default:
		srvErr = hs.srv.Serve(hs.listener)
	}
	if !errors.Is(srvErr, http.ErrServerClosed) {
		return srvErr
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	hs.log.Debugf("server was shutdown gracefully")

	return nil
}

// Addr returns the address the server is listening on.
func (hs *HTTPServer) Addr() string {
	return hs.listener.Addr().String()
}

// Close closes the listener and all connections immediately.
func (hs *HTTPServer) Close() error {
	err := hs.srv.Close()
	hs.listener.Close()
	return err
}
