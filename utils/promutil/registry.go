// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package promutil

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is a prometheus.Registry that remembers registered collectors.
// It is also a prometheus.Collector, Describe lists descriptors of all registered
// collectors including vectors that have no children yet.
type Registry struct {
	*prometheus.Registry

	mu         sync.Mutex
	collectors []prometheus.Collector
}

var _ prometheus.Collector = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		Registry: prometheus.NewRegistry(),
	}
}

func (r *Registry) Register(c prometheus.Collector) error {
	if err := r.Registry.Register(c); err != nil {
		return err
	}

	r.mu.Lock()
	r.collectors = append(r.collectors, c)
	r.mu.Unlock()

	return nil
}

func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Unregister(c prometheus.Collector) bool {
	if !r.Registry.Unregister(c) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.collectors {
		if r.collectors[i] == c {
			r.collectors = append(r.collectors[:i], r.collectors[i+1:]...)
			break
		}
	}

	return true
}

func (r *Registry) registered() []prometheus.Collector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]prometheus.Collector(nil), r.collectors...)
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range r.registered() {
		c.Describe(ch)
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	for _, c := range r.registered() {
		c.Collect(ch)
	}
}
