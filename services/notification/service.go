package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecocommunity-gamification/pkg/db/option"
	"ecocommunity-gamification/pkg/rediskey"
	"ecocommunity-gamification/pkg/repository"

	"github.com/bwmarrin/snowflake"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -destination=mock_dispatcher.go -package=notification ecocommunity-gamification/services/notification Dispatcher

// Dispatcher is the single outbound call the award pipeline makes. Its
// failure never affects an award that already committed.
type Dispatcher interface {
	AchievementUnlocked(ctx context.Context, userID int64, a Achievement) error
}

// Publisher is the realtime fan-out; *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
}

// Service persists notifications and pushes them to connected sessions.
type Service struct {
	node      *snowflake.Node
	now       func() time.Time
	publisher Publisher

	notifications repository.Repository[Notification]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Redis *goredis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		node: p.Node,
		now:  time.Now,

		notifications: repository.ProvideStore[Notification](p.DB),
	}
	if p.Redis != nil {
		s.publisher = p.Redis
	}
	return s
}

func (s *Service) AchievementUnlocked(ctx context.Context, userID int64, a Achievement) error {
	n := &Notification{
		ID:        s.node.Generate().Int64(),
		UserID:    userID,
		Type:      TypeAchievement,
		Title:     "Achievement Unlocked!",
		Content:   fmt.Sprintf("You've earned the '%s' achievement and %d XP!", a.Name, a.ExpGranted),
		Link:      "/achievements",
		CreatedAt: s.now(),
	}
	return s.Send(ctx, n)
}

// Send stores n and publishes it. Only the insert can fail the call; a lost
// realtime push is logged.
func (s *Service) Send(ctx context.Context, n *Notification) error {
	sc := trace.SpanFromContext(ctx).SpanContext()
	zapLog := zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.Int64("user_id", n.UserID),
	)

	if err := s.notifications.Create(ctx, n); err != nil {
		zapLog.Error("failed to store notification", zap.Error(err))
		return fmt.Errorf("store notification: %w", err)
	}

	if s.publisher == nil {
		return nil
	}

	msg, err := json.Marshal(Event{Type: EventNewNotification, Notification: n})
	if err != nil {
		zapLog.Warn("failed to encode notification event", zap.Error(err))
		return nil
	}
	if err := s.publisher.Publish(ctx, rediskey.BuildNotificationChannel(n.UserID), msg).Err(); err != nil {
		zapLog.Warn("failed to publish notification", zap.Error(err))
	}

	return nil
}

// List returns the user's notifications, newest first. limit defaults to
// DefaultPageSize and is capped at MaxPageSize.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	return s.notifications.Find(ctx, &Notification{},
		option.WithEqual("user_id", userID),
		func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC").Order("id DESC") },
		option.WithLimitOffset(limit, 0),
	)
}
