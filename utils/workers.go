// Package utils contains small helpers shared by the transports and services.
package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// WorkerGroup runs the background loops of a publisher or subscriber. The loops share
// a context that ends with the parent context or on Stop.
type WorkerGroup struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewWorkerGroup starts loops in a group bound to parent.
func NewWorkerGroup(parent context.Context, loops ...func(ctx context.Context)) *WorkerGroup {
	ctx, cancel := context.WithCancel(parent)
	g := &WorkerGroup{ctx: ctx, cancel: cancel}
	g.Go(loops...)
	return g
}

// Go starts each loop in its own goroutine. Loops added after the group ended are not
// started.
func (g *WorkerGroup) Go(loops ...func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx.Err() != nil {
		return
	}
	g.running.Add(len(loops))
	for _, loop := range loops {
		loop := loop
		goutils.PanicCapturingGo(func() {
			defer g.running.Done()
			loop(g.ctx)
		})
	}
}

// Stop ends the context of the group and waits for all loops to return.
func (g *WorkerGroup) Stop() {
	g.mu.Lock()
	g.cancel()
	g.mu.Unlock()
	g.running.Wait()
}
