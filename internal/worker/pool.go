// Package worker provides a bounded worker pool for image decode work.
// A single pool is shared across concurrent ingest requests so fingerprint
// computation cannot saturate CPU and I/O no matter how many checks run at
// once.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Pool bounds concurrent task execution with a fixed number of slots.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with the given number of slots. Sizes below 1 fall
// back to the number of CPUs.
func NewPool(size int) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Run executes task(0..n-1) with bounded concurrency and waits for all
// started tasks to finish. When ctx is canceled, no further tasks start and
// ctx.Err() is returned; tasks already running complete normally.
func (p *Pool) Run(ctx context.Context, n int, task func(i int)) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.slots <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer func() {
				<-p.slots
				wg.Done()
			}()
			task(i)
		}(i)
	}
	return nil
}
