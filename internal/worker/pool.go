// Package worker provides the bounded fan-out used during ingestion and
// evidence gathering: one task per source, at most N in flight.
package worker

import (
	"context"
	"sync"
)

// Task is one named unit of per-source work.
type Task struct {
	ID string
	Fn func(ctx context.Context) error
}

// Result pairs a task with its outcome.
type Result struct {
	ID  string
	Err error
}

// Pool executes tasks with bounded concurrency.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given worker count.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all tasks and returns one result per task, in task order.
// Cancellation stops new tasks from starting; tasks already in flight see
// the context and are expected to wind down on their own.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, task := range tasks {
		select {
		case <-ctx.Done():
			results[i] = Result{ID: task.ID, Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, t Task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = Result{ID: t.ID, Err: t.Fn(ctx)}
		}(i, task)
	}

	wg.Wait()
	return results
}
