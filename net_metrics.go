// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// upstreamConnMetrics tracks connections to upstreams by dial address.
type upstreamConnMetrics struct {
	dialErrors *prometheus.CounterVec
	opened     *prometheus.CounterVec
	open       *prometheus.GaugeVec
}

func newUpstreamConnMetrics(r prometheus.Registerer, namespace string) *upstreamConnMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &upstreamConnMetrics{
		dialErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "upstream_dial_errors_total",
			Namespace: namespace,
			Help:      "Number of failed upstream dials by reason",
		}, []string{"upstream", "reason"}),
		opened: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "upstream_cx_total",
			Namespace: namespace,
			Help:      "Number of dialed upstream connections",
		}, []string{"upstream"}),
		open: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "upstream_cx_active",
			Namespace: namespace,
			Help:      "Number of open upstream connections",
		}, []string{"upstream"}),
	}
}

func (m *upstreamConnMetrics) dialFailed(addr string, err error) {
	m.dialErrors.WithLabelValues(upstreamLabel(addr), dialErrorReason(err)).Inc()
}

func (m *upstreamConnMetrics) connOpened(addr string) {
	u := upstreamLabel(addr)
	m.opened.WithLabelValues(u).Inc()
	m.open.WithLabelValues(u).Inc()
}

func (m *upstreamConnMetrics) connClosed(addr string) {
	m.open.WithLabelValues(upstreamLabel(addr)).Dec()
}

// upstreamLabel returns host:port of the dial address with loopback hosts reported as localhost.
func upstreamLabel(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "unknown"
	}

	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsUnspecified()) {
		return net.JoinHostPort("localhost", port)
	}

	return net.JoinHostPort(host, port)
}

func dialErrorReason(err error) string {
	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "refused"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "other"
	}
}
