// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultSizeBuckets cover response bodies from 100B to 100MB.
var DefaultSizeBuckets = prometheus.ExponentialBuckets(100, 10, 7)

type PrometheusOption func(*Prometheus)

// WithLabel partitions all metrics by the value f returns for a request, e.g. the matched route.
// It can be used multiple times, labels are added in order.
func WithLabel(name string, f func(*http.Request) string) PrometheusOption {
	return func(p *Prometheus) {
		p.extra = append(p.extra, requestLabel{name: name, value: f})
	}
}

// WithDurationBuckets sets request duration histogram buckets in seconds.
func WithDurationBuckets(b []float64) PrometheusOption {
	return func(p *Prometheus) {
		p.durationBuckets = b
	}
}

// WithSizeBuckets sets response size histogram buckets in bytes.
func WithSizeBuckets(b []float64) PrometheusOption {
	return func(p *Prometheus) {
		p.sizeBuckets = b
	}
}

type requestLabel struct {
	name  string
	value func(*http.Request) string
}

// Prometheus is a middleware that collects metrics about the HTTP requests and responses.
// It creates a single delegator per request.
// Metrics are partitioned by method, status code and the labels added with WithLabel.
// Hijacked connections, such as WebSocket tunnels, are reported with code 101 once the tunnel ends.
type Prometheus struct {
	requestsInFlight *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	responseSize     *prometheus.HistogramVec

	extra           []requestLabel
	durationBuckets []float64
	sizeBuckets     []float64
}

func NewPrometheus(r prometheus.Registerer, namespace string, opts ...PrometheusOption) *Prometheus {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	p := &Prometheus{
		durationBuckets: prometheus.DefBuckets,
		sizeBuckets:     DefaultSizeBuckets,
	}
	for _, opt := range opts {
		opt(p)
	}

	labels := []string{"method"}
	for _, l := range p.extra {
		labels = append(labels, l.name)
	}
	labelsWithCode := append([]string{"code"}, labels...)

	p.requestsInFlight = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Current number of HTTP requests being served.",
	}, labels)
	p.requestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, labelsWithCode)
	p.requestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "The HTTP request latencies in seconds.",
		Buckets:   p.durationBuckets,
	}, labelsWithCode)
	p.responseSize = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "The HTTP response body sizes in bytes.",
		Buckets:   p.sizeBuckets,
	}, labelsWithCode)

	return p
}

func (p *Prometheus) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		labels := p.requestLabels(r)

		inFlight := p.requestsInFlight.WithLabelValues(labels...)
		inFlight.Inc()
		defer inFlight.Dec()

		d := newDelegator(w, nil)
		start := time.Now()
		h.ServeHTTP(d, r)
		elapsed := time.Since(start)

		withCode := append([]string{strconv.Itoa(d.Status())}, labels...)
		p.requestsTotal.WithLabelValues(withCode...).Inc()
		p.requestDuration.WithLabelValues(withCode...).Observe(elapsed.Seconds())
		p.responseSize.WithLabelValues(withCode...).Observe(float64(d.Written()))
	})
}

func (p *Prometheus) requestLabels(r *http.Request) []string {
	v := make([]string, 0, 1+len(p.extra))
	v = append(v, r.Method)
	for _, l := range p.extra {
		v = append(v, l.value(r))
	}
	return v
}
