// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mateproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIEndpoint struct {
	Path    string
	Handler http.Handler
}

// ReadyFunc reports if the service is ready to serve requests.
type ReadyFunc func(ctx context.Context) error

// APIHandler serves API endpoints.
// It provides health and readiness endpoints prometheus metrics, and pprof debug endpoints.
type APIHandler struct {
	mux   *http.ServeMux
	ready ReadyFunc
	index string
}

func NewAPIHandler(title string, r prometheus.Gatherer, ready ReadyFunc, extraEndpoints ...APIEndpoint) *APIHandler {
	m := http.NewServeMux()
	a := &APIHandler{
		mux:   m,
		ready: ready,
	}

	endpoints := []APIEndpoint{
		{"/metrics", promhttp.HandlerFor(r, promhttp.HandlerOpts{})},
		{"/healthz", http.HandlerFunc(a.healthz)},
		{"/readyz", http.HandlerFunc(a.readyz)},
	}
	endpoints = append(endpoints, extraEndpoints...)

	var idx strings.Builder
	fmt.Fprintf(&idx, "%s\n\n", title)
	for _, e := range endpoints {
		m.Handle(e.Path, e.Handler)
		fmt.Fprintf(&idx, "%s\n", e.Path)
	}
	a.index = idx.String()

	m.HandleFunc("/debug/pprof/", pprof.Index)
	m.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	m.HandleFunc("/debug/pprof/profile", pprof.Profile)
	m.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	m.HandleFunc("/debug/pprof/trace", pprof.Trace)
	m.HandleFunc("/", a.indexPage)

	return a
}

func (h *APIHandler) indexPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.index))
}

func (h *APIHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *APIHandler) readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "Service Unavailable: %s", err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}
