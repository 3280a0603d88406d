// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"github.com/mmatczuk/anyflag"
	"github.com/saucelabs/mateproxy/httplog"
)

// httplogValue is the --log-http flag value.
// After every change it resolves the mode of each server,
// see resolveHTTPLogModes.
type httplogValue struct {
	*anyflag.SliceValue[NamedParam[httplog.Mode]]
	entries *[]NamedParam[httplog.Mode]
	servers []NamedParam[httplog.Mode]
}

func newHTTPLogValue(servers []NamedParam[httplog.Mode]) httplogValue {
	var entries []NamedParam[httplog.Mode]
	parse := func(val string) (NamedParam[httplog.Mode], error) {
		name, mode, err := httplog.SplitNameMode(val)
		return NamedParam[httplog.Mode]{Name: name, Param: &mode}, err
	}
	return httplogValue{
		SliceValue: anyflag.NewSliceValue[NamedParam[httplog.Mode]](nil, &entries, parse),
		entries:    &entries,
		servers:    servers,
	}
}

func (v httplogValue) Set(val string) error {
	if err := v.SliceValue.Set(val); err != nil {
		return err
	}
	resolveHTTPLogModes(v.servers, *v.entries)
	return nil
}

func (v httplogValue) Replace(vals []string) error {
	if err := v.SliceValue.Replace(vals); err != nil {
		return err
	}
	resolveHTTPLogModes(v.servers, *v.entries)
	return nil
}

func (v httplogValue) names() []string {
	names := make([]string, 0, len(v.servers))
	for _, s := range v.servers {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	return names
}

// resolveHTTPLogModes sets the mode of each server.
// An entry naming the server wins, otherwise the last entry without a name applies.
// Servers not matched by any entry keep their mode.
func resolveHTTPLogModes(servers, entries []NamedParam[httplog.Mode]) {
	var def *httplog.Mode
	named := make(map[string]httplog.Mode, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			def = e.Param
		} else {
			named[e.Name] = *e.Param
		}
	}

	for _, s := range servers {
		if m, ok := named[s.Name]; ok {
			*s.Param = m
		} else if def != nil {
			*s.Param = *def
		}
	}
}
