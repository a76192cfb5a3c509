// Package jobs contains the background task definitions and the worker
// that processes them.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aegis-admin/aegis-admin/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditPurge is the task type for pruning old audit entries.
	TaskTypeAuditPurge = "audit:purge"
)

// AuditPurgePayload carries the retention window for a purge run.
type AuditPurgePayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(payload AuditPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPurge, data), nil
}

// AuditPurger deletes audit entries older than a cutoff.
type AuditPurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HandleAuditPurgeTask returns the handler processing TaskTypeAuditPurge.
func HandleAuditPurgeTask(purger AuditPurger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OlderThan <= 0 {
			return asynq.SkipRetry
		}
		_, err := purger.Purge(ctx, payload.OlderThan)
		return err
	}
}

// AuditRecordHandler adapts the audit record task for worker registration.
func AuditRecordHandler(recorder *audit.Recorder) TaskHandler {
	return TaskHandler{Type: audit.TaskTypeRecord, Handler: audit.RecordHandler(recorder)}
}
