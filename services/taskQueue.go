package services

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
)

const (
	writebackAttempts = 3
	writebackBackoff  = 250 * time.Millisecond
	writebackTimeout  = 10 * time.Second
)

// WritebackTask is a unit of deferred persistence work.
type WritebackTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// WritebackQueue executes persistence work off the request path. Lazy
// migration uses it so a list read never waits on (or fails because of) the
// write that upgrades a legacy record. Failures are retried with backoff and
// then logged; the in-memory response has already been served by then.
type WritebackQueue struct {
	tasks chan WritebackTask
	wg    sync.WaitGroup
}

// NewWritebackQueue starts the given number of workers over a bounded
// buffer. A full buffer drops new tasks rather than blocking the caller.
func NewWritebackQueue(workers, buffer int) *WritebackQueue {
	q := &WritebackQueue{tasks: make(chan WritebackTask, buffer)}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules a task and reports whether it was accepted.
func (q *WritebackQueue) Enqueue(task WritebackTask) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		log.WithField("task", task.Name).Warn("write-back queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks and blocks until queued work has drained.
func (q *WritebackQueue) Close() {
	close(q.tasks)
	q.wg.Wait()
}

func (q *WritebackQueue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.run(task)
	}
}

func (q *WritebackQueue) run(task WritebackTask) {
	var err error
	for attempt := 1; attempt <= writebackAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), writebackTimeout)
		err = task.Run(ctx)
		cancel()
		if err == nil {
			return
		}
		log.WithError(err).WithFields(log.Fields{
			"task":    task.Name,
			"attempt": attempt,
		}).Warn("write-back attempt failed")
		time.Sleep(writebackBackoff * time.Duration(attempt))
	}
	log.WithError(err).WithField("task", task.Name).Error("write-back abandoned after retries")
}
