// Package fanout runs a function across a slice of items with a fixed
// number of worker goroutines, preserving input order in the results. The
// execution core uses it to resolve batches of documents against the
// parsing service without unbounded parallel requests.
package fanout

import (
	"context"
	"sync"
)

// Result holds the outcome of processing a single item. Either Value is
// populated (on success) or Err is non-nil (on failure).
type Result[R any] struct {
	Value R
	Err   error
}

// Run executes fn for each item using at most maxWorkers concurrent
// goroutines and returns results in input order.
//
// A goroutine still waiting for a worker slot when ctx is cancelled records
// ctx.Err() without calling fn. Goroutines that already hold a slot run to
// completion; fn checks ctx itself if it supports early exit.
//
// Run blocks until every goroutine finishes. An empty input returns an
// empty non-nil slice. maxWorkers must be >= 1.
func Run[T, R any](ctx context.Context, maxWorkers int, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	if len(items) == 0 {
		return []Result[R]{}
	}

	results := make([]Result[R], len(items))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result[R]{Err: ctx.Err()}
				return
			}

			val, err := fn(ctx, it)
			results[idx] = Result[R]{Value: val, Err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}

// Succeeded counts results with a nil error.
func Succeeded[R any](results []Result[R]) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// FirstError returns the first non-nil error in input order, or nil when
// every item succeeded.
func FirstError[R any](results []Result[R]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
