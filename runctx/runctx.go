// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package runctx runs the long lived parts of a server until the first of them fails
// or the process receives a termination signal.
package runctx

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// DefaultNotifySignals specifies signals that would cause the context to be canceled.
var DefaultNotifySignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// Group is a collection of functions that would be run concurrently.
// The context passed to each function is canceled when any of the functions returns an error,
// or when any of the signals in NotifySignals is received.
// A function returning context.Canceled after the context is canceled is a clean shutdown.
type Group struct {
	NotifySignals []os.Signal

	// OnSignal, if set, is called with the received signal before the context is canceled.
	OnSignal func(sig os.Signal)

	funcs []func(ctx context.Context) error
}

func NewGroup(fn ...func(ctx context.Context) error) *Group {
	return &Group{
		funcs: fn,
	}
}

func (g *Group) Add(fn func(ctx context.Context) error) {
	g.funcs = append(g.funcs, fn)
}

func (g *Group) Run() error {
	return g.RunContext(context.Background())
}

func (g *Group) RunContext(ctx context.Context) error {
	sigs := g.NotifySignals
	if len(sigs) == 0 {
		sigs = DefaultNotifySignals
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sigs...)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			if g.OnSignal != nil {
				g.OnSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	var wg sync.WaitGroup
	for _, fn := range g.funcs {
		fn := fn
		wg.Add(1)
		eg.Go(func() error {
			defer wg.Done()
			err := fn(ctx)
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	// Release the signal goroutine when all functions returned without error.
	go func() {
		wg.Wait()
		cancel()
	}()

	return eg.Wait()
}
