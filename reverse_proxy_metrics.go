// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type reverseProxyMetrics struct {
	errors        *prometheus.CounterVec
	routed        *prometheus.CounterVec
	tunnels       *prometheus.CounterVec
	tunnelsActive prometheus.Gauge
}

func newReverseProxyMetrics(r prometheus.Registerer, namespace string) *reverseProxyMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &reverseProxyMetrics{
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "proxy_errors_total",
			Namespace: namespace,
			Help:      "Number of proxy errors",
		}, []string{"reason"}),
		routed: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "routed_requests_total",
			Namespace: namespace,
			Help:      "Number of requests matched to a route",
		}, []string{"route"}),
		tunnels: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "websocket_handshakes_total",
			Namespace: namespace,
			Help:      "Number of WebSocket handshakes by result",
		}, []string{"result"}),
		tunnelsActive: f.NewGauge(prometheus.GaugeOpts{
			Name:      "websocket_tunnels_active",
			Namespace: namespace,
			Help:      "Number of open WebSocket tunnels",
		}),
	}
}

func (m *reverseProxyMetrics) error(reason string) {
	m.errors.WithLabelValues(reason).Inc()
}

func (m *reverseProxyMetrics) route(r *Route) {
	m.routed.WithLabelValues(r.Path).Inc()
}

func (m *reverseProxyMetrics) handshake(result string) {
	m.tunnels.WithLabelValues(result).Inc()
}

func (m *reverseProxyMetrics) tunnelOpened() {
	m.tunnelsActive.Inc()
}

func (m *reverseProxyMetrics) tunnelClosed() {
	m.tunnelsActive.Dec()
}
