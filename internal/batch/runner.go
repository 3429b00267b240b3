// Package batch runs a unit of work over many items with bounded concurrency.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"igavatar/pkg/logger"
)

// Result holds the outcome of work for one item
type Result[R any] struct {
	Value R
	Err   error
}

// Func is the unit of work applied to each item
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Run applies work to every item using at most concurrency workers.
// The returned slice has one Result per item, in input order. A failing or
// panicking work call only affects its own slot. Once ctx is done, items not
// yet claimed get ctx.Err() without work being called.
func Run[T, R any](ctx context.Context, items []T, work Func[T, R], concurrency int) []Result[R] {
	return RunWithLogger(ctx, items, work, concurrency, logger.NewNopLogger())
}

// RunWithLogger is Run with worker lifecycle logging
func RunWithLogger[T, R any](ctx context.Context, items []T, work Func[T, R], concurrency int, log logger.Logger) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	if log == nil {
		log = logger.GetLogger()
	}

	numWorkers := PoolSize(concurrency, len(items))
	start := time.Now()

	log.DebugWithFields("Starting batch workers", map[string]interface{}{
		"num_workers": numWorkers,
		"items":       len(items),
	})

	// cursor is the next unclaimed index
	var cursor atomic.Int64
	var wg sync.WaitGroup

	for id := 0; id < numWorkers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			processed := 0
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(items) {
					break
				}

				if err := ctx.Err(); err != nil {
					results[i] = Result[R]{Err: err}
					continue
				}

				results[i] = process(ctx, work, items[i])
				if results[i].Err != nil {
					log.DebugWithFields("Batch item failed", map[string]interface{}{
						"worker_id": id,
						"index":     i,
						"error":     results[i].Err.Error(),
					})
				}
				processed++
			}

			log.DebugWithFields("Worker stopping - no items left", map[string]interface{}{
				"worker_id": id,
				"processed": processed,
			})
		}(id)
	}

	wg.Wait()

	log.DebugWithFields("Batch workers finished", map[string]interface{}{
		"num_workers": numWorkers,
		"items":       len(items),
		"duration":    time.Since(start),
	})

	return results
}

// PoolSize returns the number of workers used for n items: at least one,
// never more than n or concurrency
func PoolSize(concurrency, n int) int {
	size := concurrency
	if n < size {
		size = n
	}
	if size < 1 {
		size = 1
	}
	return size
}

// process runs work for a single item, converting a panic into an error
func process[T, R any](ctx context.Context, work Func[T, R], item T) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: fmt.Errorf("batch work panicked: %v", r)}
		}
	}()

	value, err := work(ctx, item)
	return Result[R]{Value: value, Err: err}
}
