package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/pprof"
)

// cpuProfiler writes a CPU profile for as long as its context lives.
//
//nolint:containedctx
type cpuProfiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// newCPUProfiler returns a pointer to a new [cpuProfiler] that is already
// profiling into path, unless path is empty. It needs to be stopped with
// [cpuProfiler.Stop] for the profile to be written.
func newCPUProfiler(ctx context.Context, path string) *cpuProfiler {
	cprof := &cpuProfiler{}
	cprof.ctx, cprof.cancel = context.WithCancel(ctx)
	cprof.doneChan = make(chan struct{})
	started := make(chan struct{})

	go cprof.profile(path, started)
	<-started

	return cprof
}

func (cprof *cpuProfiler) profile(path string, started chan<- struct{}) {
	defer close(cprof.doneChan)

	if path == "" {
		close(started)

		return
	}

	f, err := os.Create(path)
	if err != nil {
		slog.Error("Could not create cpu profile", "err", err)
		close(started)

		return
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		slog.Error("Could not start cpu profile", "err", err)
		close(started)

		return
	}
	defer pprof.StopCPUProfile()

	close(started)
	<-cprof.ctx.Done()
}

// Stop stops the profiling and waits for the profile to be written.
func (cprof *cpuProfiler) Stop() {
	cprof.cancel()
	<-cprof.doneChan
}

// allocProfiler writes an allocation profile once its context ends.
//
//nolint:containedctx
type allocProfiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// newAllocProfiler returns a pointer to a new [allocProfiler] writing into
// path, unless path is empty.
func newAllocProfiler(ctx context.Context, path string) *allocProfiler {
	aprof := &allocProfiler{}
	aprof.ctx, aprof.cancel = context.WithCancel(ctx)
	aprof.doneChan = make(chan struct{})

	go aprof.profile(path)

	return aprof
}

func (aprof *allocProfiler) profile(path string) {
	defer close(aprof.doneChan)

	if path == "" {
		return
	}

	<-aprof.ctx.Done()

	f, err := os.Create(path)
	if err != nil {
		slog.Error("Could not create allocs profile", "err", err)

		return
	}
	defer f.Close()

	if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
		slog.Error("Could not write allocs profile", "err", err)
	}
}

// Stop writes the allocation profile and waits for it to finish.
func (aprof *allocProfiler) Stop() {
	aprof.cancel()
	<-aprof.doneChan
}
