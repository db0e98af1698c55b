package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeScriptWatchdog     = "script:watchdog"
	TypeRefinementWatchdog = "refinement:watchdog"
)

// WatchdogPayload names the script or refinement a watchdog task checks.
type WatchdogPayload struct {
	ID string `json:"id"`
}

// WatchdogScheduler schedules the checks that fail work the workflow engine
// never finished.
type WatchdogScheduler interface {
	ScheduleScriptWatchdog(ctx context.Context, scriptID string, after time.Duration) error
	ScheduleRefinementWatchdog(ctx context.Context, refinementID string, after time.Duration) error
}

// Enqueuer is the part of *asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue schedules watchdog tasks on asynq.
type Queue struct {
	client Enqueuer
	logger *zap.Logger
}

func NewQueue(client Enqueuer, logger *zap.Logger) *Queue {
	return &Queue{client: client, logger: logger.Named("queue")}
}

func (q *Queue) ScheduleScriptWatchdog(ctx context.Context, scriptID string, after time.Duration) error {
	return q.enqueue(ctx, TypeScriptWatchdog, scriptID, after)
}

func (q *Queue) ScheduleRefinementWatchdog(ctx context.Context, refinementID string, after time.Duration) error {
	return q.enqueue(ctx, TypeRefinementWatchdog, refinementID, after)
}

func (q *Queue) enqueue(ctx context.Context, taskType, id string, after time.Duration) error {
	payload, err := json.Marshal(WatchdogPayload{ID: id})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(taskType, payload,
		asynq.ProcessIn(after),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.TaskID(taskType+":"+id),
	)

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s failed: %w", taskType, err)
	}
	q.logger.Debug("watchdog scheduled",
		zap.String("type", taskType),
		zap.String("id", id),
		zap.String("task_id", info.ID),
		zap.Duration("after", after),
	)
	return nil
}
