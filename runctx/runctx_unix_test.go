// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build unix

package runctx

import (
	"context"
	"os"
	"syscall"
	"testing"
)

func TestSignal(t *testing.T) {
	var got os.Signal

	g := NewGroup()
	g.OnSignal = func(sig os.Signal) {
		got = sig
	}
	g.Add(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.Add(func(ctx context.Context) error {
		return syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	})

	if err := g.Run(); err != nil {
		t.Fatal(err)
	}
	if got != syscall.SIGINT {
		t.Fatalf("expected SIGINT, got %v", got)
	}
}
