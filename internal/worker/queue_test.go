package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	starts []time.Time
	ends   []time.Time
}

func (r *recorder) task(name string, d time.Duration) Task {
	return Task{
		Name: name,
		Run: func(ctx context.Context) {
			r.mu.Lock()
			r.events = append(r.events, "start "+name)
			r.starts = append(r.starts, time.Now())
			r.mu.Unlock()

			time.Sleep(d)

			r.mu.Lock()
			r.events = append(r.events, "end "+name)
			r.ends = append(r.ends, time.Now())
			r.mu.Unlock()
		},
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ends)
}

func runQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestQueue_RunsTasksSequentiallyInOrder(t *testing.T) {
	q := NewQueue(0)
	runQueue(t, q)

	rec := &recorder{}
	q.Enqueue(rec.task("A", 5*time.Millisecond), rec.task("B", time.Millisecond), rec.task("C", 0))

	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"start A", "end A", "start B", "end B", "start C", "end C"}, rec.events)
	assert.Zero(t, q.Pending())
}

func TestQueue_EnforcesCooldownBetweenTasks(t *testing.T) {
	cooldown := 30 * time.Millisecond
	q := NewQueue(cooldown)
	runQueue(t, q)

	rec := &recorder{}
	q.Enqueue(rec.task("A", 0), rec.task("B", 0), rec.task("C", 0))

	require.Eventually(t, func() bool { return rec.count() == 3 }, 2*time.Second, time.Millisecond)
	for i := 1; i < 3; i++ {
		gap := rec.starts[i].Sub(rec.ends[i-1])
		assert.GreaterOrEqual(t, gap, cooldown, "gap before task %d", i)
	}
}

func TestQueue_FirstTaskDoesNotWait(t *testing.T) {
	q := NewQueue(time.Hour)
	runQueue(t, q)

	rec := &recorder{}
	q.Enqueue(rec.task("A", 0))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
}

func TestQueue_BatchesStayContiguous(t *testing.T) {
	q := NewQueue(0)
	rec := &recorder{}

	q.Enqueue(rec.task("A1", 0), rec.task("A2", 0))
	q.Enqueue(rec.task("B1", 0), rec.task("B2", 0))
	assert.Equal(t, 4, q.Pending())

	runQueue(t, q)
	require.Eventually(t, func() bool { return rec.count() == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{
		"start A1", "end A1", "start A2", "end A2",
		"start B1", "end B1", "start B2", "end B2",
	}, rec.events)
}

func TestQueue_StopsOnCancel(t *testing.T) {
	q := NewQueue(time.Hour)
	rec := &recorder{}
	q.Enqueue(rec.task("A", 0), rec.task("B", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue did not stop after cancel")
	}
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 1, q.Pending())
}
