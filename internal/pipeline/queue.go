package pipeline

import (
	"sync"

	"imageflow/internal/models"
)

// Queue is an unbounded FIFO of ingestion jobs. Enqueue never blocks; Dequeue
// blocks the caller until a job is available or the queue is closed.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []models.IngestionJob
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job. It is safe for concurrent producers and is a no-op
// after Close.
func (q *Queue) Enqueue(job models.IngestionJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
}

// Dequeue removes and returns the oldest job, blocking while the queue is
// empty. It returns ok=false once the queue has been closed and drained.
func (q *Queue) Dequeue() (models.IngestionJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return models.IngestionJob{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close wakes any blocked consumer. Jobs already queued can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
