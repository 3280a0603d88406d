// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"os"

	"github.com/mmatczuk/anyflag"
	"github.com/spf13/pflag"
)

// NamedParam binds a flag value to a named parameter, e.g. the HTTP log mode of the "api" server.
type NamedParam[T fmt.Stringer] struct {
	Name  string
	Param *T
}

func (p NamedParam[T]) String() string {
	if p.Name == "" {
		return (*p.Param).String()
	}
	return p.Name + ":" + (*p.Param).String()
}

// fileValue is a flag value that opens the file on Set.
// It prints the file name, or nothing if no file is set.
type fileValue struct {
	*anyflag.Value[*os.File]
	f **os.File
}

func (v fileValue) String() string {
	if *v.f == nil {
		return ""
	}
	return (*v.f).Name()
}

func NewFileFlag(f **os.File, open func(path string) (*os.File, error)) pflag.Value {
	if f == nil {
		panic("nil pointer")
	}
	return fileValue{
		Value: anyflag.NewValue[*os.File](*f, f, open),
		f:     f,
	}
}
