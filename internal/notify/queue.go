package notify

import (
	"sync"
	"time"

	"alertcore/internal/domain"
)

// Rule is the scheduling policy copied into a job at enqueue time.
// Params: channel list, timing, and retry budget; never re-read after enqueue.
// Returns: per-job dispatch policy.
type Rule struct {
	Channels   []string
	Immediate  bool
	Delay      time.Duration
	MaxRetries int
}

// Job is one scheduled attempt to deliver one alert.
// Params: alert reference, frozen rule, attempt counter, and due time.
// Returns: transient queue element; lost on process restart.
type Job struct {
	AlertID      string
	Severity     domain.Severity
	Rule         Rule
	Attempts     int
	CreatedAt    time.Time
	ScheduledFor time.Time
}

// Queue is the mutex-guarded in-memory notification job queue.
// Params: pending job list owned exclusively by the dispatcher.
// Returns: concurrency-safe queue operations.
type Queue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewQueue creates an empty job queue.
// Params: none.
// Returns: initialized queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends one job to the queue.
// Params: job to enqueue.
// Returns: none.
func (q *Queue) Push(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// PopDue removes and returns every job due at the given time.
// Params: current time.
// Returns: jobs with scheduledFor at or before now, in enqueue order.
func (q *Queue) PopDue(now time.Time) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Job
	remaining := q.jobs[:0]
	for _, job := range q.jobs {
		if !job.ScheduledFor.After(now) {
			due = append(due, job)
			continue
		}
		remaining = append(remaining, job)
	}
	q.jobs = remaining
	return due
}

// Len reports queued job count.
// Params: none.
// Returns: pending job count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
