package achievement

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ecocommunity-gamification/pkg/db/option"
	"ecocommunity-gamification/pkg/repository"
	"ecocommunity-gamification/services/activity"
	"ecocommunity-gamification/services/notification"
	"ecocommunity-gamification/services/reward"
	"ecocommunity-gamification/services/stats"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ecocommunity-gamification/services/achievement")

// StatsSource is the part of the stats aggregator achievements are judged on.
type StatsSource interface {
	Get(ctx context.Context, userID int64) (*stats.Snapshot, error)
	Refresh(ctx context.Context, userID int64) (*stats.Snapshot, error)
	RefreshOne(ctx context.Context, userID int64, stat string) (decimal.Decimal, error)
}

// Service evaluates the catalog against user stats and is the only writer
// of unlocks and achievement EXP.
type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	now       func() time.Time
	txOptions *sql.TxOptions

	catalog    *Catalog
	stats      StatsSource
	reward     *reward.Service
	activity   *activity.Service
	cache      Cache
	dispatcher notification.Dispatcher

	group   singleflight.Group
	unlocks repository.Repository[Unlock]

	// generations counts cache invalidations per user. A fill that started
	// before an invalidation is dropped.
	genMu       sync.Mutex
	generations map[int64]uint64
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	TxOptions  *sql.TxOptions `optional:"true"`
	Catalog    *Catalog
	Stats      *stats.Service
	Reward     *reward.Service
	Activity   *activity.Service
	Cache      Cache
	Dispatcher notification.Dispatcher `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		now:       time.Now,
		txOptions: p.TxOptions,

		catalog:    p.Catalog,
		stats:      p.Stats,
		reward:     p.Reward,
		activity:   p.Activity,
		cache:      p.Cache,
		dispatcher: p.Dispatcher,

		unlocks: repository.ProvideStore[Unlock](p.DB),

		generations: make(map[int64]uint64),
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

func (s *Service) txOpts() []*sql.TxOptions {
	if s.txOptions == nil {
		return nil
	}
	return []*sql.TxOptions{s.txOptions}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

func (s *Service) ListAll() []Definition {
	return s.catalog.ListAll()
}

// ListEarned returns the user's achievements newest first, through the read
// cache. Concurrent misses for one user share a single query.
func (s *Service) ListEarned(ctx context.Context, userID int64) ([]Earned, error) {
	if err := reward.CheckUserID(userID); err != nil {
		return nil, err
	}
	if earned, ok := s.cache.Get(ctx, userID); ok {
		return s.hydrate(earned), nil
	}

	gen := s.generation(userID)
	key := strconv.FormatInt(userID, 10) + ":" + strconv.FormatUint(gen, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		// shared by every waiter, so it must outlive the first caller
		ctx := context.WithoutCancel(ctx)
		earned, err := s.loadEarned(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, userID, gen, earned)
		return earned, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneEarned(v.([]Earned)), nil
}

func (s *Service) generation(userID int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

// fill caches earned unless the user was invalidated after gen was read.
func (s *Service) fill(ctx context.Context, userID int64, gen uint64, earned []Earned) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[userID] != gen {
		return
	}
	s.cache.Set(ctx, userID, earned)
}

func (s *Service) invalidate(ctx context.Context, userID int64) error {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[userID]++
	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) loadEarned(ctx context.Context, userID int64) ([]Earned, error) {
	rows, err := s.unlocks.Find(ctx, &Unlock{}, option.WithEqual("user_id", userID), func(db *gorm.DB) *gorm.DB {
		return db.Order("earned_at DESC").Order("id DESC")
	})
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("failed to load unlocks", zap.Error(err))
		return nil, fmt.Errorf("load unlocks: %w", err)
	}

	earned := make([]Earned, 0, len(rows))
	for _, u := range rows {
		def, ok := s.catalog.Definition(u.AchievementID)
		if !ok {
			zap.L().With(logFields(ctx, userID)...).Warn("unlock references unknown achievement", zap.Int64("achievement_id", u.AchievementID))
			continue
		}
		earned = append(earned, Earned{Definition: def, EarnedAt: u.EarnedAt})
	}
	return earned, nil
}

// hydrate swaps decoded definitions for the catalog's so parsed criteria
// survive a trip through an external cache.
func (s *Service) hydrate(earned []Earned) []Earned {
	for i := range earned {
		if def, ok := s.catalog.Definition(earned[i].ID); ok {
			earned[i].Definition = def
		}
	}
	return earned
}

// earnedAt reads unlocks straight from the database. Award decisions never
// go through the cache.
func (s *Service) earnedAt(ctx context.Context, userID int64) (map[int64]time.Time, error) {
	rows, err := s.unlocks.Find(ctx, &Unlock{}, option.WithEqual("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}
	out := make(map[int64]time.Time, len(rows))
	for _, u := range rows {
		out[u.AchievementID] = u.EarnedAt
	}
	return out, nil
}

func (s *Service) unearned(values stats.Values, earned map[int64]time.Time) []Progress {
	out := make([]Progress, 0, len(s.catalog.defs))
	for _, def := range s.catalog.ListAll() {
		if _, ok := earned[def.ID]; ok {
			continue
		}
		out = append(out, Evaluate(def, values))
	}
	return out
}

// Progress refreshes the user's stats and scores every unearned achievement.
// It never awards.
func (s *Service) Progress(ctx context.Context, userID int64) ([]Progress, error) {
	if err := reward.CheckUserID(userID); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "achievement.Progress", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	snap, err := s.stats.Refresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := s.earnedAt(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.unearned(snap.Values(), earned), nil
}

// Reconcile refreshes the user's stats and awards every satisfied
// achievement. Definitions that were satisfied but not awarded, because the
// daily budget is spent, stay in the unearned list.
func (s *Service) Reconcile(ctx context.Context, userID int64) (*ReconcileResult, error) {
	if err := reward.CheckUserID(userID); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "achievement.Reconcile", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	snap, err := s.stats.Refresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := s.earnedAt(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		Unearned: []Progress{},
		Awarded:  []*AwardResult{},
	}
	for _, p := range s.unearned(snap.Values(), earned) {
		if p.Satisfied {
			awarded, err := s.Award(ctx, userID, p.ID)
			if err != nil {
				return nil, err
			}
			if awarded != nil {
				result.Awarded = append(result.Awarded, awarded)
				continue
			}
		}
		result.Unearned = append(result.Unearned, p)
	}

	return result, nil
}

// Overview lists the whole catalog flagged with what the user has earned.
func (s *Service) Overview(ctx context.Context, userID int64) ([]OverviewItem, error) {
	earned, err := s.ListEarned(ctx, userID)
	if err != nil {
		return nil, err
	}
	at := make(map[int64]time.Time, len(earned))
	for _, e := range earned {
		at[e.ID] = e.EarnedAt
	}

	defs := s.catalog.ListAll()
	out := make([]OverviewItem, 0, len(defs))
	for _, def := range defs {
		item := OverviewItem{Definition: def}
		if t, ok := at[def.ID]; ok {
			item.Earned = true
			item.EarnedAt = &t
		}
		out = append(out, item)
	}
	return out, nil
}

// Track handles one domain action: it recomputes the affected stat, logs
// the action and reconciles achievements.
func (s *Service) Track(ctx context.Context, userID int64, stat string, payload any) (*TrackResult, error) {
	if err := reward.CheckUserID(userID); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "achievement.Track", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.String("stat", stat),
	))
	defer span.End()

	value, err := s.stats.RefreshOne(ctx, userID, stat)
	if err != nil {
		return nil, err
	}

	if _, err := s.activity.Append(ctx, userID, activity.StatType(stat), payload); err != nil {
		return nil, err
	}

	reconciled, err := s.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}

	exp, err := s.reward.Exp(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &TrackResult{
		Stat:     stat,
		Value:    value.InexactFloat64(),
		Awarded:  reconciled.Awarded,
		TotalExp: exp,
		Level:    s.reward.Level(exp),
	}, nil
}

// UserSummary is another user's earned list plus progress from their
// stored snapshot. Viewing a profile does not trigger a refresh.
func (s *Service) UserSummary(ctx context.Context, userID int64) (*UserSummary, error) {
	earned, err := s.ListEarned(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap, err := s.stats.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	at := make(map[int64]time.Time, len(earned))
	for _, e := range earned {
		at[e.ID] = e.EarnedAt
	}

	return &UserSummary{
		UserID:   userID,
		Earned:   earned,
		Progress: s.unearned(snap.Values(), at),
	}, nil
}
