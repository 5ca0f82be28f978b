package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"docworker/core/jobs"
)

// ListEnqueuer appends jobs to a Redis list. Paired with the worker's BLPOP it
// gives FIFO delivery.
type ListEnqueuer struct {
	conn Connection
	list string
}

// NewListEnqueuer returns an Enqueuer writing to list over conn.
func NewListEnqueuer(conn Connection, list string) *ListEnqueuer {
	return &ListEnqueuer{conn: conn, list: list}
}

var _ jobs.Enqueuer = (*ListEnqueuer)(nil)

func (e *ListEnqueuer) Enqueue(ctx context.Context, job *jobs.JobEnvelope) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := e.conn.Push(ctx, e.list, string(payload)); err != nil {
		return fmt.Errorf("enqueue to %s: %w", e.list, err)
	}
	return nil
}
