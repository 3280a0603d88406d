// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mateproxy provides an HTTP reverse proxy that routes requests to upstreams by path prefix.
// Each route controls how X-Forwarded-* headers and the Host header are sent to its upstream.
// WebSocket upgrade requests are tunneled to the upstream and exchanges can be captured
// with bodies decoded for inspection, see the capture package.
package mateproxy
