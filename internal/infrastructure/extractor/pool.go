package extractor

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-heavy parse jobs run at once. Waiting for a slot
// honors context cancellation so a busy pool cannot pin a request forever.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool builds a pool; size <= 0 uses the number of CPUs.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a slot is free. A panic inside fn is returned as an error;
// the PDF reader in particular panics on some malformed files.
func (p *Pool) Do(ctx context.Context, fn func() error) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for parse slot: %w", err)
	}
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return fn()
}
