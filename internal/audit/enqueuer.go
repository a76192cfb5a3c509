package audit

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// TaskTypeRecord is the asynq task type carrying one audit entry.
const TaskTypeRecord = "audit:record"

// Enqueuer hands entries to the background worker instead of writing them
// inline, keeping audit I/O off the request path.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Record enqueues the entry for asynchronous persistence.
func (e *Enqueuer) Record(ctx context.Context, entry Entry) error {
	if e == nil || e.client == nil {
		return errors.New("audit enqueuer not initialised")
	}
	task, err := NewRecordTask(entry)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	return err
}
