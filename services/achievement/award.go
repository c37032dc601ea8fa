package achievement

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"ecocommunity-gamification/pkg/db/option"
	"ecocommunity-gamification/pkg/errutil"
	"ecocommunity-gamification/services/activity"
	"ecocommunity-gamification/services/notification"
	"ecocommunity-gamification/services/reward"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MessageDailyLimitReached = "Daily EXP limit reached"

// Returned from inside the award transaction to roll it back. Award maps
// them to a no-op.
var (
	errAlreadyEarned   = errors.New("achievement already earned")
	errBudgetExhausted = errors.New("daily exp budget exhausted")
)

var awardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gamification_awards_total",
	Help: "Award attempts by outcome.",
}, []string{"outcome"})

// Award unlocks an achievement and grants its EXP in one transaction. A nil
// result with a nil error means nothing happened: the id is unknown, the
// user already holds it, or today's EXP budget is spent.
func (s *Service) Award(ctx context.Context, userID, achievementID int64) (*AwardResult, error) {
	if err := reward.CheckUserID(userID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "achievement.Award", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("achievement_id", achievementID),
	))
	defer span.End()

	zapLog := zap.L().With(logFields(ctx, userID)...).With(zap.Int64("achievement_id", achievementID))

	def, ok := s.catalog.Definition(achievementID)
	if !ok {
		zapLog.Debug("award skipped, unknown achievement")
		awardsTotal.WithLabelValues("unknown").Inc()
		return nil, nil
	}
	if def.ExpReward <= 0 {
		awardsTotal.WithLabelValues("no_reward").Inc()
		return nil, nil
	}

	var result *AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.reward.LockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		unlocks := s.unlocks.WithTrx(tx)
		existing, err := unlocks.FindOne(ctx, &Unlock{},
			option.WithEqual("user_id", userID),
			option.WithEqual("achievement_id", def.ID),
		)
		if err != nil {
			return fmt.Errorf("check unlock: %w", err)
		}
		if existing != nil {
			return errAlreadyEarned
		}

		err = unlocks.Create(ctx, &Unlock{
			ID:            s.node.Generate().Int64(),
			UserID:        userID,
			AchievementID: def.ID,
			EarnedAt:      s.now(),
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errAlreadyEarned
		}
		if err != nil {
			return fmt.Errorf("insert unlock: %w", err)
		}

		granted, err := s.reward.ClampTx(ctx, tx, userID, def.ExpReward)
		if err != nil {
			return err
		}
		if granted <= 0 {
			return errBudgetExhausted
		}

		total, err := s.reward.AddExp(ctx, tx, user, granted)
		if err != nil {
			return err
		}

		_, err = s.activity.AppendTx(ctx, tx, activity.Params{
			UserID:       userID,
			ActivityType: activity.TypeAchievementEarned,
			Payload: map[string]any{
				"achievement_id": def.ID,
				"name":           def.Name,
				"exp_reward":     granted,
			},
			ExpGranted: granted,
		})
		if err != nil {
			return err
		}

		result = &AwardResult{
			Achievement: def,
			Granted:     granted,
			TotalExp:    total,
			Level:       s.reward.Level(total),
		}
		return nil
	}, s.txOpts()...)

	switch {
	case errors.Is(err, errAlreadyEarned):
		awardsTotal.WithLabelValues("already_earned").Inc()
		return nil, nil
	case errors.Is(err, errBudgetExhausted):
		zapLog.Info("award skipped, daily exp limit reached")
		awardsTotal.WithLabelValues("capped").Inc()
		return nil, nil
	case err != nil:
		zapLog.Error("award failed", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	awardsTotal.WithLabelValues("awarded").Inc()
	zapLog.Info("achievement awarded", zap.Int64("exp_granted", result.Granted), zap.Int64("total_exp", result.TotalExp))

	s.afterAward(ctx, userID, result)
	return result, nil
}

// afterAward runs once the award is durable. Nothing here may fail the award.
func (s *Service) afterAward(ctx context.Context, userID int64, r *AwardResult) {
	zapLog := zap.L().With(logFields(ctx, userID)...).With(zap.Int64("achievement_id", r.Achievement.ID))

	if err := s.invalidate(ctx, userID); err != nil {
		zapLog.Warn("failed to invalidate achievement cache", zap.Error(err))
	}

	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.AchievementUnlocked(ctx, userID, notification.Achievement{
		ID:         r.Achievement.ID,
		Name:       r.Achievement.Name,
		Slug:       r.Achievement.Slug(),
		IconName:   r.Achievement.IconName,
		ExpGranted: r.Granted,
	})
	if err != nil {
		zapLog.Warn("failed to dispatch achievement notification", zap.Error(err))
	}
}

// GrantExp awards EXP for a completed challenge or learning material under
// the same lock and daily cap as Award.
func (s *Service) GrantExp(ctx context.Context, userID, amount int64, activityType string, payload map[string]any) (*GrantResult, error) {
	if activityType == activity.TypeAchievementEarned || !activity.IsRewardType(activityType) {
		return nil, errutil.BadRequest(fmt.Sprintf("activity type %q does not grant exp", activityType), nil)
	}
	if amount <= 0 {
		return nil, errutil.BadRequest("amount must be positive", nil)
	}
	if err := reward.CheckUserID(userID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "achievement.GrantExp", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.String("activity_type", activityType),
	))
	defer span.End()

	var (
		current int64
		result  *GrantResult
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.reward.LockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		current = user.Exp

		granted, err := s.reward.ClampTx(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		if granted <= 0 {
			return errBudgetExhausted
		}

		total, err := s.reward.AddExp(ctx, tx, user, granted)
		if err != nil {
			return err
		}

		data := make(map[string]any, len(payload)+1)
		maps.Copy(data, payload)
		data["exp_reward"] = granted

		_, err = s.activity.AppendTx(ctx, tx, activity.Params{
			UserID:       userID,
			ActivityType: activityType,
			Payload:      data,
			ExpGranted:   granted,
		})
		if err != nil {
			return err
		}

		result = &GrantResult{
			Success:   true,
			Message:   fmt.Sprintf("Gained %d EXP", granted),
			ExpGained: granted,
			TotalExp:  total,
			Level:     s.reward.Level(total),
		}
		return nil
	}, s.txOpts()...)

	if errors.Is(err, errBudgetExhausted) {
		return &GrantResult{
			Success:  false,
			Message:  MessageDailyLimitReached,
			TotalExp: current,
			Level:    s.reward.Level(current),
		}, nil
	}
	if err != nil {
		zap.L().With(logFields(ctx, userID)...).Error("grant exp failed", zap.String("activity_type", activityType), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return result, nil
}
