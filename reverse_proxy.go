// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/mateproxy/capture"
	"github.com/saucelabs/mateproxy/header"
	"github.com/saucelabs/mateproxy/log"
)

type ReverseProxyConfig struct {
	// RequestHeaders are applied to every upstream request after the X-Forwarded-* headers.
	RequestHeaders header.Headers

	PromNamespace string
	PromRegistry  prometheus.Registerer
}

func DefaultReverseProxyConfig() *ReverseProxyConfig {
	return &ReverseProxyConfig{}
}

// ReverseProxy forwards requests to the upstream of the matching route.
// WebSocket upgrade requests are tunneled to the upstream.
type ReverseProxy struct {
	config    ReverseProxyConfig
	routes    *RouteTable
	transport RouteTransport
	tunnel    RouteTransport
	capture   *capture.Capturer
	log       log.Logger
	metrics   *reverseProxyMetrics

	ctx    context.Context
	cancel context.CancelFunc
}

// NewReverseProxy creates a reverse proxy for the routes.
// The transport is used for regular requests and the tunnel transport for WebSocket handshakes.
// The capturer may be nil.
// It is the caller's responsibility to call Close when the proxy is no longer used.
func NewReverseProxy(cfg *ReverseProxyConfig, routes *RouteTable, transport, tunnel RouteTransport, c *capture.Capturer, log log.Logger) (*ReverseProxy, error) {
	if routes == nil {
		return nil, ErrNoRoutes
	}
	if transport == nil || tunnel == nil {
		return nil, errors.New("transport is required")
	}

	for _, r := range routes.Routes() {
		log.Infof("route %s copy_x_forwarded=%t add_x_forwarded=%t host=%s insecure=%t",
			r, r.CopyXForwardedHeaders, r.AddXForwardedHeaders, r.HostHeaderMode, r.InsecureSkipVerify)
	}
	for i := range cfg.RequestHeaders {
		log.Infof("upstream request header modifier %s", &cfg.RequestHeaders[i])
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ReverseProxy{
		config:    *cfg,
		routes:    routes,
		transport: transport,
		tunnel:    tunnel,
		capture:   c,
		log:       log,
		metrics:   newReverseProxyMetrics(cfg.PromRegistry, cfg.PromNamespace),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Close closes all open tunnels.
// Regular requests are not affected, they are handled by http.Server shutdown.
func (rp *ReverseProxy) Close() {
	rp.cancel()
}

func (rp *ReverseProxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r, target, err := rp.routes.Match(req.URL)
	if err != nil {
		rp.log.Debugf("no route method=%s path=%s", req.Method, req.URL.Path)
		rp.writeError(w, req, err)
		return
	}
	rp.metrics.route(r)

	if isWebSocketUpgrade(req.Header) {
		rp.serveUpgrade(w, req, r, target)
		return
	}

	rp.serve(w, req, r, target)
}

func (rp *ReverseProxy) serve(w http.ResponseWriter, req *http.Request, r *Route, target *url.URL) {
	rp.log.Debugf("routing method=%s path=%s route=%q upstream=%s", req.Method, req.URL.Path, r, target.Redacted())

	rec := rp.capture.Start(req, r.Name, target)

	outreq := rp.upstreamRequest(req, r, target)
	outreq.Body = rec.RequestBody(outreq.Body)

	res, err := rp.transport(r).RoundTrip(outreq)
	if err != nil {
		rec.Finish(err)
		rp.handleRoundTripError(w, req, r, err)
		return
	}
	defer res.Body.Close()

	rec.Response(res.StatusCode, res.Header)

	if err := CopyResponse(w, res.StatusCode, res.Header, rec.ResponseBody(res.Body)); err != nil {
		rec.Finish(err)
		if req.Context().Err() != nil {
			rp.log.Debugf("client gone while copying response path=%s: %s", req.URL.Path, err)
		} else {
			rp.log.Errorf("failed to copy response route=%q path=%s: %s", r, req.URL.Path, err)
		}
		rp.metrics.error("copy_response")
		// Abort the connection so the client does not see a truncated body as complete.
		panic(http.ErrAbortHandler)
	}
	rec.Finish(nil)
}

// upstreamRequest builds the request sent to the upstream.
// The body is the inbound request body, it is nil for upgrade requests and requests without body.
func (rp *ReverseProxy) upstreamRequest(req *http.Request, r *Route, target *url.URL) *http.Request {
	h, host := UpstreamHeaders(req, r, ConnInfoFromRequest(req, trimTrailingSlash(r.Path)))

	var upgrade string
	if isWebSocketUpgrade(req.Header) {
		upgrade = upgradeType(req.Header)
	}
	removeHopByHopHeaders(h, upgrade)
	rp.config.RequestHeaders.Apply(h)

	// Prevent http.Transport from setting the default User-Agent.
	if _, ok := h["User-Agent"]; !ok {
		h.Set("User-Agent", "")
	}

	outreq := &http.Request{
		Method:        req.Method,
		URL:           target,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Host:          host,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}
	if upgrade != "" || req.ContentLength == 0 {
		outreq.Body = nil
		outreq.ContentLength = 0
	}

	return outreq.WithContext(req.Context())
}

func (rp *ReverseProxy) handleRoundTripError(w http.ResponseWriter, req *http.Request, r *Route, err error) {
	if errors.Is(err, context.Canceled) && req.Context().Err() != nil {
		rp.log.Debugf("client canceled request route=%q path=%s", r, req.URL.Path)
		rp.metrics.error("canceled")
		return
	}

	rp.log.Errorf("upstream request failed route=%q method=%s path=%s: %s", r, req.Method, req.URL.Path, err)
	rp.writeError(w, req, err)
}

func (rp *ReverseProxy) writeError(w http.ResponseWriter, req *http.Request, err error) {
	res := rp.errorResponse(req, err)
	defer res.Body.Close()

	if err := CopyResponse(w, res.StatusCode, res.Header, res.Body); err != nil {
		rp.log.Debugf("failed to write error response path=%s: %s", req.URL.Path, err)
	}
}
