// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package capture

import "fmt"

// SinkType selects where captured exchanges go.
type SinkType string

const (
	SinkNone  SinkType = "none"
	SinkLog   SinkType = "log"
	SinkRedis SinkType = "redis"
)

func (t SinkType) String() string {
	return string(t)
}

func (t *SinkType) UnmarshalText(text []byte) error {
	switch v := SinkType(text); v {
	case SinkNone, SinkLog, SinkRedis:
		*t = v
		return nil
	default:
		return fmt.Errorf("invalid capture sink %q", text)
	}
}
