// Package queue implements a generic work queue that is drained by a pool of
// workers and accounts for the progress of its items.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Decision is the outcome of processing an item.
type Decision int

const (
	// DecisionSuccess is returned by a processFunc when an item was processed.
	DecisionSuccess Decision = 1

	// DecisionFailed is returned by a processFunc when an item failed.
	DecisionFailed Decision = 0

	// DecisionRequeue is returned by a processFunc when an item needs
	// requeueing.
	DecisionRequeue Decision = -1
)

// Queue is a generic queue that can hold any comparable type of items.
type Queue[T comparable] struct {
	sync.RWMutex
	startTime  time.Time
	finishTime time.Time
	head       int
	items      []T
	success    []T
	failed     []T
	inProgress map[T]struct{}

	totalBytes atomic.Int64
	doneBytes  atomic.Int64
}

// New returns a pointer to a new [Queue] holding items.
func New[T comparable](items ...T) *Queue[T] {
	q := &Queue[T]{
		inProgress: make(map[T]struct{}),
	}
	q.Enqueue(items...)

	return q
}

// Enqueue adds items to the queue.
func (q *Queue[T]) Enqueue(items ...T) {
	q.Lock()
	defer q.Unlock()

	q.finishTime = time.Time{}

	for _, item := range items {
		delete(q.inProgress, item)
		q.items = append(q.items, item)
	}
}

// Dequeue returns the next item of the queue and marks it in progress.
func (q *Queue[T]) Dequeue() (T, bool) { //nolint:ireturn
	q.Lock()
	defer q.Unlock()

	if q.head >= len(q.items) {
		var zeroVal T

		return zeroVal, false
	}

	if q.startTime.IsZero() {
		q.startTime = time.Now()
	}

	item := q.items[q.head]
	q.head++
	q.inProgress[item] = struct{}{}

	return item, true
}

// HasRemainingItems returns whether the queue has items left to dequeue.
func (q *Queue[T]) HasRemainingItems() bool {
	q.RLock()
	defer q.RUnlock()

	return q.head < len(q.items)
}

// Successful returns a copy of the successfully processed items.
func (q *Queue[T]) Successful() []T {
	q.RLock()
	defer q.RUnlock()

	return append([]T(nil), q.success...)
}

// Failed returns a copy of the items that failed.
func (q *Queue[T]) Failed() []T {
	q.RLock()
	defer q.RUnlock()

	return append([]T(nil), q.failed...)
}

// AddTotalBytes adds n to the number of bytes the queue's items amount to.
func (q *Queue[T]) AddTotalBytes(n int64) {
	q.totalBytes.Add(n)
}

// AddDoneBytes adds n to the number of bytes processed so far.
func (q *Queue[T]) AddDoneBytes(n int64) {
	q.doneBytes.Add(n)
}

// settle records the decision for an in-progress item.
func (q *Queue[T]) settle(item T, decision Decision) {
	if decision == DecisionRequeue {
		q.Enqueue(item)

		return
	}

	q.Lock()
	defer q.Unlock()

	delete(q.inProgress, item)

	if decision == DecisionSuccess {
		q.success = append(q.success, item)
	} else {
		q.failed = append(q.failed, item)
	}

	if q.head >= len(q.items) && len(q.inProgress) == 0 {
		q.finishTime = time.Now()
	}
}

// Process sequentially dequeues and processes items with processFunc. An
// error is only returned in case of a context cancellation.
func (q *Queue[T]) Process(ctx context.Context, processFunc func(context.Context, T) Decision) error {
	for ctx.Err() == nil {
		item, ok := q.Dequeue()
		if !ok {
			break
		}

		q.settle(item, processFunc(ctx, item))
	}

	if ctx.Err() != nil {
		return fmt.Errorf("(queue-proc) %w", ctx.Err())
	}

	return nil
}

// ProcessConc dequeues and processes items with processFunc on up to
// maxWorkers goroutines. An error is only returned in case of a context
// cancellation, after all running workers have returned.
//
// It is the responsibility of the processFunc to ensure thread-safety for
// anything happening inside the processFunc, with the [Queue] only
// guaranteeing thread-safety for itself.
func (q *Queue[T]) ProcessConc(ctx context.Context, maxWorkers int, processFunc func(context.Context, T) Decision) error {
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, max(maxWorkers, 1))

	// Requeued items may arrive after the last worker has left.
	for q.HasRemainingItems() {
		for {
			select {
			case <-ctx.Done():
				wg.Wait()

				return fmt.Errorf("(queue-concproc) %w", ctx.Err())
			case semaphore <- struct{}{}:
			}

			if ctx.Err() != nil {
				<-semaphore
				wg.Wait()

				return fmt.Errorf("(queue-concproc) %w", ctx.Err())
			}

			item, ok := q.Dequeue()
			if !ok {
				<-semaphore

				break
			}

			wg.Add(1)
			go func(item T) {
				defer wg.Done()
				defer func() { <-semaphore }()

				q.settle(item, processFunc(ctx, item))
			}(item)
		}

		wg.Wait()
	}

	if ctx.Err() != nil {
		return fmt.Errorf("(queue-concproc) %w", ctx.Err())
	}

	return nil
}
