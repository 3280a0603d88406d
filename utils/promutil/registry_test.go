// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package promutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry()
	f := promauto.With(r)

	c := f.NewCounter(prometheus.CounterOpts{ //nolint:promlinter // For test purposes
		Name: "test_counter",
		Help: "Test counter",
	})
	f.NewCounterVec(prometheus.CounterOpts{ //nolint:promlinter // For test purposes
		Name: "test_counter_vec",
		Help: "Test counter vec",
	}, []string{"label"})
	c.Inc()

	desc := DescribePrometheusMetrics(r)
	if len(desc) != 2 {
		t.Fatalf("expected 2 descriptors, got %+v", desc)
	}

	n, err := testutil.GatherAndCount(r, "test_counter", "test_counter_vec")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 gathered series, got %d", n)
	}

	if !r.Unregister(c) {
		t.Fatal("expected counter to be unregistered")
	}
	if desc := DescribePrometheusMetrics(r); len(desc) != 1 || desc[0].FqName != "test_counter_vec" {
		t.Fatalf("unexpected descriptors after unregister: %+v", desc)
	}
}
