package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecocommunity-gamification/pkg/db/option"
	"ecocommunity-gamification/pkg/errutil"
	"ecocommunity-gamification/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service owns the append-only activity ledger. Entries are never updated
// or deleted; the ledger is also the source of truth for daily EXP totals.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	entries repository.Repository[Entry]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		now:  time.Now,

		entries: repository.ProvideStore[Entry](p.DB),
	}
}

func logFields(ctx context.Context, userID int64) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.Int64("user_id", userID),
	}
}

// Append records an activity that grants no EXP.
func (s *Service) Append(ctx context.Context, userID int64, activityType string, payload any) (*Entry, error) {
	return s.AppendTx(ctx, nil, Params{
		UserID:       userID,
		ActivityType: activityType,
		Payload:      payload,
	})
}

// AppendTx inserts on tx when given, so the entry commits or rolls back with
// the caller's award.
func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, p Params) (*Entry, error) {
	if p.UserID <= 0 {
		return nil, errutil.BadRequest(fmt.Sprintf("invalid user id %d", p.UserID), nil)
	}
	if p.ActivityType == "" {
		return nil, errutil.BadRequest("activity_type is required", nil)
	}
	if p.ExpGranted < 0 {
		return nil, errutil.BadRequest("exp_granted must not be negative", nil)
	}

	data, err := encodePayload(p.Payload)
	if err != nil {
		return nil, errutil.BadRequest("activity_data is not valid json", err)
	}

	entry := &Entry{
		ID:           s.node.Generate().Int64(),
		UserID:       p.UserID,
		ActivityType: p.ActivityType,
		ActivityData: data,
		ExpGranted:   p.ExpGranted,
		CreatedAt:    s.now(),
	}

	if err := s.entries.WithTrx(tx).Create(ctx, entry); err != nil {
		zap.L().With(logFields(ctx, p.UserID)...).Error("failed to append activity", zap.String("activity_type", p.ActivityType), zap.Error(err))
		return nil, fmt.Errorf("append activity: %w", err)
	}

	return entry, nil
}

func encodePayload(payload any) (datatypes.JSON, error) {
	switch v := payload.(type) {
	case nil:
		return datatypes.JSON("{}"), nil
	case datatypes.JSON:
		if len(v) == 0 {
			return datatypes.JSON("{}"), nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("invalid json payload")
		}
		return v, nil
	case json.RawMessage:
		return encodePayload(datatypes.JSON(v))
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// List returns the user's feed newest first. limit defaults to
// DefaultPageSize and is capped at MaxPageSize.
func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.entries.Find(ctx, &Entry{},
		option.WithEqual("user_id", userID),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		func(db *gorm.DB) *gorm.DB { return db.Order("id DESC") },
		option.WithLimitOffset(limit, offset),
	)
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("failed to list activities", zap.Error(err))
		return nil, err
	}
	if entries == nil {
		entries = []*Entry{}
	}

	return entries, nil
}

// SumGrantedBetween totals exp_granted for the given types over [from, to).
// Pass the award transaction as tx so the sum sees its own writes.
func (s *Service) SumGrantedBetween(ctx context.Context, tx *gorm.DB, userID int64, types []string, from, to time.Time) (int64, error) {
	db := s.db
	if tx != nil {
		db = tx
	}

	var total int64
	q := db.WithContext(ctx).
		Model(&Entry{}).
		Select("COALESCE(SUM(exp_granted), 0)")
	for _, opt := range []option.QueryOption{
		option.WithEqual("user_id", userID),
		option.ApplyOperator(option.Condition{Field: "activity_type", Operator: option.IN, Value: types}),
		option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.GTE, Value: from}),
		option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LT, Value: to}),
	} {
		q = opt(q)
	}
	err := q.Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum granted exp: %w", err)
	}

	return total, nil
}
