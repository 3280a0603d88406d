// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	captured  = "captured"
	sinkError = "sink_error"
	dropped   = "dropped"
)

type metrics struct {
	exchanges *prometheus.CounterVec
}

func newMetrics(r prometheus.Registerer, namespace string) *metrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &metrics{
		exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "capture_exchanges_total",
			Namespace: namespace,
			Help:      "Number of recorded exchanges by delivery result",
		}, []string{"result"}),
	}
}

func (m *metrics) result(r string) {
	m.exchanges.WithLabelValues(r).Inc()
}
