package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	_ "github.com/aegis-admin/aegis-admin/testing"
)

type fakePurger struct {
	gotOlderThan time.Duration
	err          error
}

func (f *fakePurger) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.gotOlderThan = olderThan
	return 3, f.err
}

func TestHandleAuditPurgeTask(t *testing.T) {
	purger := &fakePurger{}
	handler := HandleAuditPurgeTask(purger)

	task, err := NewAuditPurgeTask(AuditPurgePayload{OlderThan: 90 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if purger.gotOlderThan != 90*24*time.Hour {
		t.Fatalf("unexpected retention window %v", purger.gotOlderThan)
	}
}

func TestHandleAuditPurgeTaskBadPayload(t *testing.T) {
	handler := HandleAuditPurgeTask(&fakePurger{})

	task := asynq.NewTask(TaskTypeAuditPurge, []byte("not json"))
	if err := handler(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got %v", err)
	}

	task, err := NewAuditPurgeTask(AuditPurgePayload{OlderThan: 0})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for zero retention, got %v", err)
	}
}

func TestHandleAuditPurgeTaskPropagatesError(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	handler := HandleAuditPurgeTask(purger)

	task, err := NewAuditPurgeTask(AuditPurgePayload{OlderThan: time.Hour})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); err == nil {
		t.Fatalf("expected purge error to propagate for retry")
	}
}
