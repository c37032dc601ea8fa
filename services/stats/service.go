package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecocommunity-gamification/pkg/db/option"
	"ecocommunity-gamification/pkg/errutil"
	"ecocommunity-gamification/pkg/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrUnknownStat = errors.New("unknown stat")

var tracer = otel.Tracer("ecocommunity-gamification/services/stats")

// Service maintains the per-user snapshot of derived stats. The snapshot is
// a cache: every value can be recomputed from the source tables at any time.
type Service struct {
	db       *gorm.DB
	now      func() time.Time
	registry *Registry

	snapshots repository.Repository[Snapshot]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Registry *Registry `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	registry := p.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Service{
		db:       p.DB,
		now:      time.Now,
		registry: registry,

		snapshots: repository.ProvideStore[Snapshot](p.DB),
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func logFields(ctx context.Context, userID int64) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.Int64("user_id", userID),
	}
}

// Get returns the persisted snapshot, creating an all-zero one on first use.
func (s *Service) Get(ctx context.Context, userID int64) (*Snapshot, error) {
	return s.get(ctx, s.db, userID)
}

func checkUserID(userID int64) error {
	if userID <= 0 {
		return errutil.BadRequest(fmt.Sprintf("invalid user id %d", userID), nil)
	}
	return nil
}

func (s *Service) get(ctx context.Context, db *gorm.DB, userID int64, opts ...option.QueryOption) (*Snapshot, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	opts = append([]option.QueryOption{option.WithEqual("user_id", userID)}, opts...)

	snap, err := s.snapshots.WithTrx(db).FindOne(ctx, &Snapshot{}, opts...)
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("failed to load stats snapshot", zap.Error(err))
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if snap != nil {
		return snap, nil
	}

	snap = &Snapshot{
		UserID:      userID,
		StatsData:   datatypes.NewJSONType(s.registry.Defaults()),
		LastUpdated: s.now(),
	}
	err = s.snapshots.WithTrx(db).Create(ctx, snap)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// created concurrently
		return s.snapshots.WithTrx(db).FindOne(ctx, &Snapshot{}, opts...)
	}
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("failed to create stats snapshot", zap.Error(err))
		return nil, fmt.Errorf("create stats: %w", err)
	}

	return snap, nil
}

// Refresh recomputes every registered stat and persists the whole document.
// A failing query is logged and the stat keeps its previous value.
func (s *Service) Refresh(ctx context.Context, userID int64) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "stats.Refresh", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	values := current.Values().clone()
	for _, def := range s.registry.Definitions() {
		v, err := def.Query(ctx, s.db, userID, now)
		if err != nil {
			zap.L().With(logFields(ctx, userID)...).Warn("stat query failed, keeping previous value",
				zap.String("stat", def.Name), zap.Error(err))
			if _, ok := values[def.Name]; !ok {
				values[def.Name] = decimal.Zero
			}
			continue
		}
		values[def.Name] = v
	}

	snap := &Snapshot{
		UserID:      userID,
		StatsData:   datatypes.NewJSONType(values),
		LastUpdated: now,
	}
	if err := s.snapshots.Upsert(ctx, snap, []string{"user_id"}, []string{"stats_data", "last_updated"}); err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("failed to persist stats snapshot", zap.Error(err))
		return nil, fmt.Errorf("save stats: %w", err)
	}

	return snap, nil
}

// RefreshOne recomputes a single stat after one domain action.
func (s *Service) RefreshOne(ctx context.Context, userID int64, stat string) (decimal.Decimal, error) {
	if err := checkUserID(userID); err != nil {
		return decimal.Zero, err
	}
	def, ok := s.registry.Lookup(stat)
	if !ok {
		return decimal.Zero, errutil.ValidationFailed(fmt.Sprintf("unknown stat %q", stat), ErrUnknownStat)
	}

	now := s.now()
	v, err := def.Query(ctx, s.db, userID, now)
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("stat query failed", zap.String("stat", stat), zap.Error(err))
		return decimal.Zero, fmt.Errorf("refresh %s: %w", stat, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap, err := s.get(ctx, tx, userID, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		values := snap.Values().clone()
		values[stat] = v

		return s.snapshots.WithTrx(tx).Update(ctx, userID, map[string]any{
			"stats_data":   datatypes.NewJSONType(values),
			"last_updated": now,
		})
	})
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("failed to persist stat", zap.String("stat", stat), zap.Error(err))
		return decimal.Zero, err
	}

	return v, nil
}
