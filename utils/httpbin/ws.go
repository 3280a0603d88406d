// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httpbin

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// wsEcho upgrades the connection and sends back every message it receives.
func wsEcho(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	c, err := upgrader.Upgrade(w, r, http.Header{"X-Httpbin": {"ws-echo"}})
	if err != nil {
		return
	}
	defer c.Close()
	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			break
		}
		if err := c.WriteMessage(mt, message); err != nil {
			break
		}
	}
}

// WSRejectBody is the body of the /ws/reject response.
const WSRejectBody = "upgrade not allowed\n"

// wsReject refuses every upgrade with 403 Forbidden.
func wsReject(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Httpbin", "ws-reject")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(WSRejectBody))
}
