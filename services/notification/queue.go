package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/task"
	"ecocommunity-gamification/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// QueueDispatcher hands notifications to the worker instead of writing them
// on the request path.
type QueueDispatcher struct {
	enqueuer task.Enqueuer
	queue    string
}

type QueueDispatcherParams struct {
	fx.In
	Enqueuer task.Enqueuer
	Config   *config.Config
}

func NewQueueDispatcher(p QueueDispatcherParams) *QueueDispatcher {
	queue := p.Config.Notification.Queue
	if queue == "" {
		queue = "default"
	}
	return &QueueDispatcher{enqueuer: p.Enqueuer, queue: queue}
}

func (q *QueueDispatcher) AchievementUnlocked(ctx context.Context, userID int64, a Achievement) error {
	body, err := json.Marshal(AchievementUnlockedPayload{
		UserID:      userID,
		Achievement: a,
		TraceID:     trace.SpanFromContext(ctx).SpanContext().TraceID().String(),
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	t := asynq.NewTask(taskname.NotificationAchievementUnlocked, body, asynq.MaxRetry(5))
	info, err := q.enqueuer.Enqueue(ctx, t, asynq.Queue(q.queue))
	if err != nil {
		return err
	}

	zap.L().Debug("notification enqueued",
		zap.Int64("user_id", userID),
		zap.Int64("achievement_id", a.ID),
		zap.String("task_id", info.ID),
	)
	return nil
}

// Task runs queued notifications in the worker.
type Task struct {
	service *Service
}

func NewTask(service *Service) *Task {
	return &Task{service: service}
}

func (t *Task) HandleAchievementUnlocked(ctx context.Context, at *asynq.Task) error {
	var payload AchievementUnlockedPayload
	if err := json.Unmarshal(at.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zap.L().Info("deliver achievement notification",
		zap.String("task_type", at.Type()),
		zap.Int64("user_id", payload.UserID),
		zap.Int64("achievement_id", payload.Achievement.ID),
		zap.String("trace_id", payload.TraceID),
	)

	return t.service.AchievementUnlocked(ctx, payload.UserID, payload.Achievement)
}
