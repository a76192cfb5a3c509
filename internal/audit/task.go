package audit

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// NewRecordTask constructs an asynq task for one entry.
func NewRecordTask(entry Entry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecord, data), nil
}

// RecordHandler returns the worker-side handler persisting enqueued entries.
func RecordHandler(recorder *Recorder) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return asynq.SkipRetry
		}
		return recorder.Record(ctx, entry)
	}
}
