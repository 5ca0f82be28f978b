package jobs

import "context"

// Enqueuer is an interface for enqueuing jobs onto the shared list.
type Enqueuer interface {
	// Enqueue adds a job to the tail of the queue.
	Enqueue(ctx context.Context, job *JobEnvelope) error
}
