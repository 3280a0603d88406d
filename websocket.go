// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// serveUpgrade performs the WebSocket handshake with the upstream.
// If the upstream switches protocols the client connection is hijacked
// and bytes are relayed in both directions until both sides are done.
// Any other upstream response is passed to the client as is.
func (rp *ReverseProxy) serveUpgrade(w http.ResponseWriter, req *http.Request, r *Route, target *url.URL) {
	reqUpType := upgradeType(req.Header)
	rp.log.Debugf("upgrade request type=%s path=%s route=%q upstream=%s", reqUpType, req.URL.Path, r, target.Redacted())

	res, err := rp.tunnel(r).RoundTrip(rp.upstreamRequest(req, r, target))
	if err != nil {
		rp.metrics.handshake("error")
		rp.handleRoundTripError(w, req, r, err)
		return
	}

	if res.StatusCode != http.StatusSwitchingProtocols {
		defer res.Body.Close()
		rp.metrics.handshake("rejected")
		rp.log.Debugf("upgrade rejected by upstream status=%d path=%s", res.StatusCode, req.URL.Path)
		if err := CopyResponse(w, res.StatusCode, res.Header, res.Body); err != nil {
			rp.log.Debugf("failed to copy rejected upgrade response path=%s: %s", req.URL.Path, err)
		}
		return
	}

	upstream, ok := res.Body.(io.ReadWriteCloser)
	if !ok {
		res.Body.Close()
		rp.metrics.handshake("error")
		rp.writeError(w, req, fmt.Errorf("internal error: switching protocols response with non-writable body %T", res.Body))
		return
	}
	defer upstream.Close()

	if resUpType := upgradeType(res.Header); !strings.EqualFold(resUpType, reqUpType) {
		rp.metrics.handshake("error")
		rp.writeError(w, req, fmt.Errorf("upstream tried to switch protocol %q when %q was requested", resUpType, reqUpType))
		return
	}

	rp.metrics.handshake("established")
	if err := rp.serveTunnel(w, req, res, upstream); err != nil {
		rp.log.Errorf("websocket tunnel route=%q path=%s: %s", r, req.URL.Path, err)
	}
}

// serveTunnel hijacks the client connection, forwards the upstream 101 response
// and relays bytes until both directions are finished.
// The tunnel is closed when the request context is canceled or the proxy is closed.
func (rp *ReverseProxy) serveTunnel(w http.ResponseWriter, req *http.Request, res *http.Response, upstream io.ReadWriteCloser) error {
	conn, brw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		rp.writeError(w, req, fmt.Errorf("hijack client connection: %w", err))
		return nil
	}
	defer conn.Close()

	removeHopByHopHeaders(res.Header, upgradeType(res.Header))
	if err := writeSwitchingProtocols(brw.Writer, res); err != nil {
		return err
	}
	if err := drainBuffer(upstream, brw.Reader); err != nil {
		return fmt.Errorf("drain client buffer: %w", err)
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	stop := context.AfterFunc(rp.ctx, cancel)
	defer stop()

	rp.metrics.tunnelOpened()
	defer rp.metrics.tunnelClosed()

	bicopy(ctx, rp.log,
		copier{name: "client to upstream", dst: upstream, src: conn},
		copier{name: "upstream to client", dst: conn, src: upstream},
	)

	return nil
}
