package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/taskname"
	"ecocommunity-gamification/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type published struct {
	channel string
	message []byte
}

type publisherMock struct {
	err  error
	sent []published
}

func (p *publisherMock) Publish(ctx context.Context, channel string, message any) *goredis.IntCmd {
	cmd := goredis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	p.sent = append(p.sent, published{channel: channel, message: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

type enqueuerMock struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (e *enqueuerMock) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, t)
	e.opts = append(e.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Type: t.Type()}, nil
}

func newTestService(t *testing.T, pub Publisher) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Notification{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node})
	svc.publisher = pub
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.Local) }
	return svc
}

var forestGuardian = Achievement{ID: 2, Name: "Forest Guardian", Slug: "forest-guardian", ExpGranted: 500}

func TestAchievementUnlockedStoresAndPublishes(t *testing.T) {
	pub := &publisherMock{}
	svc := newTestService(t, pub)
	ctx := context.Background()

	require.NoError(t, svc.AchievementUnlocked(ctx, 11, forestGuardian))

	list, err := svc.List(ctx, 11, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	n := list[0]
	require.Equal(t, TypeAchievement, n.Type)
	require.Equal(t, "Achievement Unlocked!", n.Title)
	require.Equal(t, "You've earned the 'Forest Guardian' achievement and 500 XP!", n.Content)
	require.Equal(t, "/achievements", n.Link)
	require.False(t, n.IsRead)

	require.Len(t, pub.sent, 1)
	require.Equal(t, "notifications:user:11", pub.sent[0].channel)
	var ev Event
	require.NoError(t, json.Unmarshal(pub.sent[0].message, &ev))
	require.Equal(t, EventNewNotification, ev.Type)
	require.Equal(t, n.ID, ev.Notification.ID)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	svc := newTestService(t, &publisherMock{err: errors.New("redis down")})
	ctx := context.Background()

	require.NoError(t, svc.AchievementUnlocked(ctx, 3, forestGuardian))

	list, err := svc.List(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListCapsLimit(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for range 60 {
		require.NoError(t, svc.AchievementUnlocked(ctx, 5, forestGuardian))
	}
	require.NoError(t, svc.AchievementUnlocked(ctx, 6, forestGuardian))

	list, err := svc.List(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, list, DefaultPageSize)

	list, err = svc.List(ctx, 5, 100)
	require.NoError(t, err)
	require.Len(t, list, MaxPageSize)

	list, err = svc.List(ctx, 5, 30)
	require.NoError(t, err)
	require.Len(t, list, 30)
	for _, n := range list {
		require.Equal(t, int64(5), n.UserID)
	}
}

func TestWithoutPublisher(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.AchievementUnlocked(context.Background(), 3, forestGuardian))
}

func TestQueueDispatcherEnqueues(t *testing.T) {
	enq := &enqueuerMock{}
	cfg := &config.Config{}
	cfg.Notification.Queue = "notifications"
	q := NewQueueDispatcher(QueueDispatcherParams{Enqueuer: enq, Config: cfg})

	require.NoError(t, q.AchievementUnlocked(context.Background(), 8, forestGuardian))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, taskname.NotificationAchievementUnlocked, enq.tasks[0].Type())

	var payload AchievementUnlockedPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, int64(8), payload.UserID)
	require.Equal(t, forestGuardian, payload.Achievement)

	var queue any
	for _, opt := range enq.opts[0] {
		if opt.Type() == asynq.QueueOpt {
			queue = opt.Value()
		}
	}
	require.Equal(t, "notifications", queue)
}

func TestQueueDispatcherEnqueueError(t *testing.T) {
	q := NewQueueDispatcher(QueueDispatcherParams{Enqueuer: &enqueuerMock{err: errors.New("broker down")}, Config: &config.Config{}})
	require.Error(t, q.AchievementUnlocked(context.Background(), 8, forestGuardian))
}

func TestTaskDeliversQueuedNotification(t *testing.T) {
	svc := newTestService(t, nil)
	task := NewTask(svc)
	ctx := context.Background()

	body, err := json.Marshal(AchievementUnlockedPayload{UserID: 21, Achievement: forestGuardian})
	require.NoError(t, err)
	require.NoError(t, task.HandleAchievementUnlocked(ctx, asynq.NewTask(taskname.NotificationAchievementUnlocked, body)))

	list, err := svc.List(ctx, 21, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestTaskRejectsBadPayload(t *testing.T) {
	task := NewTask(newTestService(t, nil))

	err := task.HandleAchievementUnlocked(context.Background(), asynq.NewTask(taskname.NotificationAchievementUnlocked, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewDispatcherByMode(t *testing.T) {
	svc := &Service{}
	queue := &QueueDispatcher{}

	cfg := &config.Config{}
	cfg.Notification.Mode = ModeInline
	require.Same(t, svc, NewDispatcher(DispatcherParams{Config: cfg, Service: svc, Queue: queue}))

	cfg.Notification.Mode = ModeQueue
	require.Same(t, queue, NewDispatcher(DispatcherParams{Config: cfg, Service: svc, Queue: queue}))
	require.Same(t, svc, NewDispatcher(DispatcherParams{Config: cfg, Service: svc}))
}
