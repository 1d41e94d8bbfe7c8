package pool

import (
	"context"
	"sync"
)

// WorkerPool bounds how many requests are processed at once across every
// queue consumer goroutine.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit runs fn on its own goroutine once a slot is free. fn is skipped if
// ctx is canceled first.
func (p *WorkerPool) Submit(ctx context.Context, fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run(ctx, fn)
	}()
}

// Run waits for a free slot and runs fn on the calling goroutine.
func (p *WorkerPool) Run(ctx context.Context, fn func(context.Context)) error {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
		fn(ctx)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
