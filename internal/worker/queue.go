package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of work for the queue. Run must not panic; failures are
// the task's own business.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Queue runs tasks one at a time on a single worker and keeps at least
// cooldown between the end of one task and the start of the next.
type Queue struct {
	cooldown time.Duration

	mu      sync.Mutex
	pending []Task

	wake chan struct{}
}

func NewQueue(cooldown time.Duration) *Queue {
	return &Queue{
		cooldown: cooldown,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue appends tasks as one contiguous block. It never blocks.
func (q *Queue) Enqueue(tasks ...Task) {
	if len(tasks) == 0 {
		return
	}

	q.mu.Lock()
	q.pending = append(q.pending, tasks...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of tasks not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run consumes the queue until ctx is done.
func (q *Queue) Run(ctx context.Context) {
	var lastDone time.Time

	for {
		if !lastDone.IsZero() {
			if wait := q.cooldown - time.Since(lastDone); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}
		}

		task, ok := q.next(ctx)
		if !ok {
			return
		}

		started := time.Now()
		task.Run(ctx)
		lastDone = time.Now()

		zap.S().Debugw("task finished", "task", task.Name, "took", lastDone.Sub(started), "pending", q.Pending())
	}
}

func (q *Queue) next(ctx context.Context) (Task, bool) {
	for {
		if ctx.Err() != nil {
			return Task{}, false
		}

		q.mu.Lock()
		if len(q.pending) > 0 {
			task := q.pending[0]
			q.pending[0] = Task{}
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return task, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Task{}, false
		}
	}
}
