// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package docsgen

import (
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/mateproxy/utils/promutil"
)

// WriteCommandProm writes metrics.md describing all metrics of the collector.
func WriteCommandProm(commandName string, p prometheus.Collector, promDir string) error {
	f, err := os.Create(path.Join(promDir, "metrics.md"))
	if err != nil {
		return err
	}

	fmt.Fprintf(f, "# Prometheus Metrics\n\n")
	fmt.Fprintf(f, "## %s\n", commandName)
	writePromMarkdown(f, promutil.DescribePrometheusMetrics(p))

	return f.Close()
}

func writePromMarkdown(w io.Writer, desc []promutil.Desc) {
	// Go runtime metrics go last.
	prefix := func(d promutil.Desc) string {
		p, _, _ := strings.Cut(d.FqName, "_")
		if p == "go" {
			return "zz"
		}
		return p
	}
	slices.SortFunc(desc, func(a, b promutil.Desc) int {
		if c := strings.Compare(prefix(a), prefix(b)); c != 0 {
			return c
		}
		return strings.Compare(a.FqName, b.FqName)
	})

	for _, d := range desc {
		fmt.Fprintf(w, "\n### `%s`\n\n%s\n", d.FqName, d.Help)

		if len(d.ConstLabels)+len(d.VariableLabels) > 0 {
			fmt.Fprintf(w, "\nLabels:\n")
		}

		cl := make([]string, 0, len(d.ConstLabels))
		for k := range d.ConstLabels {
			cl = append(cl, k)
		}
		sort.Strings(cl)
		for _, k := range cl {
			fmt.Fprintf(w, "  - %s\n", k)
		}
		for _, k := range d.VariableLabels {
			fmt.Fprintf(w, "  - %s\n", k)
		}
	}

	fmt.Fprintf(w, "\n")
}
