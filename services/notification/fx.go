package notification

import (
	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(
		NewService,
		NewDispatcher,
	),
)

// QueueModule is added when NOTIFICATION.MODE is queue; it needs an
// asynq client.
var QueueModule = fx.Module("notification.queue",
	fx.Provide(NewQueueDispatcher),
)

// TaskModule wires the worker side of queued notifications.
var TaskModule = fx.Module("task.notification",
	fx.Provide(NewService, NewTask),
	fx.Invoke(registerHandlers),
)

type DispatcherParams struct {
	fx.In
	Config  *config.Config
	Service *Service
	Queue   *QueueDispatcher `optional:"true"`
}

// NewDispatcher picks the dispatcher for NOTIFICATION.MODE.
func NewDispatcher(p DispatcherParams) Dispatcher {
	if p.Config.Notification.Mode == ModeQueue && p.Queue != nil {
		return p.Queue
	}
	return p.Service
}

func registerHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(taskname.NotificationAchievementUnlocked, t.HandleAchievementUnlocked)
}
