package database

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

// Executor runs blocking database work on behalf of callers.
type Executor interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Pool is an Executor that allows at most size calls to run at once.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do waits for a free slot and runs fn. It returns ctx.Err() if the context
// ends before a slot frees up.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("executor function is required")
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
