// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v2"
)

type DescribeFormat int

const (
	Plain DescribeFormat = iota
	JSON
	YAML
)

type FlagsDescriber struct {
	Format          DescribeFormat
	ShowChangedOnly bool
	ShowHidden      bool
}

// DescribeFlags returns flag values in the given format, flags are sorted by name.
// Values are rendered with the flag String method so that flag values with redaction hide secrets.
func (d FlagsDescriber) DescribeFlags(fs *pflag.FlagSet) ([]byte, error) {
	args := make(map[string]any, fs.NFlag())

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		if f.Hidden && !d.ShowHidden {
			return
		}
		if d.ShowChangedOnly && !f.Changed {
			return
		}

		switch v := f.Value.(type) {
		case sliceValue:
			if d.Format == Plain {
				args[f.Name] = strings.Join(v.GetSlice(), ",")
			} else {
				args[f.Name] = v.GetSlice()
			}
		default:
			if f.Value.Type() == "bool" {
				args[f.Name] = f.Value.String() == "true"
			} else {
				args[f.Name] = f.Value.String()
			}
		}
	})

	switch d.Format {
	case Plain:
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		for _, name := range keys {
			fmt.Fprintf(&sb, "%s=%v\n", name, args[name])
		}
		return []byte(sb.String()), nil
	case JSON:
		return json.Marshal(args)
	case YAML:
		return yaml.Marshal(args)
	default:
		return nil, errors.New("unknown format")
	}
}

type sliceValue interface {
	GetSlice() []string
}
