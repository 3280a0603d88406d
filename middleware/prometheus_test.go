// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherCounts(t *testing.T, g prometheus.Gatherer) map[string]uint64 {
	t.Helper()

	mfs, err := g.Gather()
	if err != nil {
		t.Fatal(err)
	}

	out := make(map[string]uint64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName() + labelString(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = uint64(m.GetCounter().GetValue())
			case dto.MetricType_HISTOGRAM:
				out[key] = m.GetHistogram().GetSampleCount()
			case dto.MetricType_GAUGE:
				out[key] = uint64(m.GetGauge().GetValue())
			default:
			}
		}
	}
	return out
}

func labelString(lp []*dto.LabelPair) string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, l := range lp {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(l.GetName() + "=" + l.GetValue())
	}
	sb.WriteString("}")
	return sb.String()
}

func TestPrometheusWrap(t *testing.T) {
	h := http.NewServeMux()
	h.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	h.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r := prometheus.NewPedanticRegistry()
	s := NewPrometheus(r, "test", WithLabel("route", func(req *http.Request) string {
		return req.URL.Path
	})).Wrap(h)

	var wg sync.WaitGroup
	for range [10]struct{}{} {
		for _, path := range []string{"/ok", "/fail"} {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
			}(path)
		}
	}
	wg.Wait()

	want := map[string]uint64{
		"test_http_requests_in_flight{method=GET,route=/ok}":                  0,
		"test_http_requests_in_flight{method=GET,route=/fail}":                0,
		"test_http_requests_total{code=200,method=GET,route=/ok}":             10,
		"test_http_requests_total{code=502,method=GET,route=/fail}":           10,
		"test_http_request_duration_seconds{code=200,method=GET,route=/ok}":   10,
		"test_http_request_duration_seconds{code=502,method=GET,route=/fail}": 10,
		"test_http_response_size_bytes{code=200,method=GET,route=/ok}":        10,
		"test_http_response_size_bytes{code=502,method=GET,route=/fail}":      10,
	}
	if diff := cmp.Diff(want, gatherCounts(t, r)); diff != "" {
		t.Errorf("unexpected metrics (-want +got):\n%s", diff)
	}
}

func TestPrometheusLabelsAndBuckets(t *testing.T) {
	r := prometheus.NewPedanticRegistry()
	p := NewPrometheus(r, "test",
		WithLabel("route", func(*http.Request) string { return "/api" }),
		WithLabel("upgrade", func(req *http.Request) string { return req.Header.Get("Upgrade") }),
		WithSizeBuckets([]float64{10}),
	)
	h := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", http.NoBody))

	mfs, err := r.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "test_http_response_size_bytes" {
			continue
		}
		m := mf.GetMetric()[0]
		if got := labelString(m.GetLabel()); got != "{code=200,method=GET,route=/api,upgrade=}" {
			t.Fatalf("unexpected labels %s", got)
		}
		b := m.GetHistogram().GetBucket()
		if len(b) != 1 || b[0].GetUpperBound() != 10 || b[0].GetCumulativeCount() != 0 {
			t.Fatalf("unexpected buckets %v", b)
		}
		return
	}
	t.Fatal("response size metric not found")
}

func TestDelegatorStatus(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		written int64
	}{
		{
			name:    "implicit",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			status:  http.StatusOK,
		},
		{
			name: "write",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("abc"))
			},
			status:  http.StatusOK,
			written: 3,
		},
		{
			name: "first status wins",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.WriteHeader(http.StatusOK)
			},
			status: http.StatusNotFound,
		},
		{
			name: "flush",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if err := http.NewResponseController(w).Flush(); err != nil {
					panic(err)
				}
			},
			status: http.StatusOK,
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			var e LogEntry
			l := Logger(func(le LogEntry) { e = le })
			rec := httptest.NewRecorder()
			l.Wrap(tc.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

			if e.Status != tc.status {
				t.Errorf("status = %d, want %d", e.Status, tc.status)
			}
			if e.Written != tc.written {
				t.Errorf("written = %d, want %d", e.Written, tc.written)
			}
			if rec.Code != tc.status {
				t.Errorf("recorded status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestDelegatorHijack(t *testing.T) {
	entries := make(chan LogEntry, 1)
	l := Logger(func(e LogEntry) { entries <- e })
	h := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, brw, err := http.NewResponseController(w).Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		brw.WriteString("HTTP/1.1 101 Switching Protocols\r\n\r\n")
		brw.Flush()
	}))

	s := httptest.NewServer(h)
	defer s.Close()

	if res, err := http.Get(s.URL); err == nil { //nolint:noctx // test
		res.Body.Close()
	}

	select {
	case e := <-entries:
		if e.Status != http.StatusSwitchingProtocols {
			t.Errorf("status = %d, want 101", e.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for log entry")
	}
}
