// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httpbin

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// events implements the /events/{milliseconds} endpoint.
// It sends a "tick" server-sent event at the given interval, each one flushed on its own.
// The stream ends after ?count events or when the client goes away.
func events(w http.ResponseWriter, r *http.Request) {
	ms, ok := atoi(w, r.URL.Path[len("/events/"):])
	if !ok {
		return
	}
	if ms <= 0 {
		http.Error(w, "interval must be positive", http.StatusBadRequest)
		return
	}

	count := -1
	if c := r.URL.Query().Get("count"); c != "" {
		if count, ok = atoi(w, c); !ok {
			return
		}
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	t := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer t.Stop()

	for id := 1; count < 0 || id <= count; id++ {
		fmt.Fprintf(w, "id: %s\nevent: tick\ndata: tick %d\n\n", strconv.Itoa(id), id)
		if err := rc.Flush(); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-t.C:
		}
	}
}
