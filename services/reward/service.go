package reward

import (
	"context"
	"fmt"
	"time"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/db/option"
	"ecocommunity-gamification/pkg/errutil"
	"ecocommunity-gamification/pkg/repository"
	"ecocommunity-gamification/services/activity"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger is the read side of the activity ledger the daily cap is computed from.
type Ledger interface {
	SumGrantedBetween(ctx context.Context, tx *gorm.DB, userID int64, types []string, from, to time.Time) (int64, error)
}

// Service enforces the daily EXP cap and owns writes to users.exp.
type Service struct {
	db     *gorm.DB
	ledger Ledger
	now    func() time.Time

	dailyLimit  int64
	expPerLevel int64

	users repository.Repository[User]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Ledger *activity.Service
	Config *config.Config `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:     p.DB,
		ledger: p.Ledger,
		now:    time.Now,

		dailyLimit:  DefaultDailyLimit,
		expPerLevel: DefaultExpPerLevel,

		users: repository.ProvideStore[User](p.DB),
	}
	if p.Config != nil {
		if v := p.Config.Gamification.DailyExpLimit; v > 0 {
			s.dailyLimit = v
		}
		if v := p.Config.Gamification.ExpPerLevel; v > 0 {
			s.expPerLevel = v
		}
	}
	return s
}

func (s *Service) DailyLimit() int64 {
	return s.dailyLimit
}

func (s *Service) Level(exp int64) int64 {
	return Level(exp, s.expPerLevel)
}

func (s *Service) Progress(exp int64) LevelProgress {
	return Progress(exp, s.expPerLevel)
}

// DayBounds returns [start of the day containing t, start of the next day)
// in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// GrantedToday sums reward-bearing EXP granted to the user on the current
// server calendar day.
func (s *Service) GrantedToday(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	from, to := DayBounds(s.now())
	return s.ledger.SumGrantedBetween(ctx, tx, userID, activity.RewardTypes, from, to)
}

// Clamp is advisory: outside the award transaction two callers can both see
// the same remaining budget. Use ClampTx while holding the user row lock.
func (s *Service) Clamp(ctx context.Context, userID int64, requested int64) (int64, error) {
	return s.ClampTx(ctx, nil, userID, requested)
}

// ClampTx returns max(0, min(requested, dailyLimit - grantedToday)).
func (s *Service) ClampTx(ctx context.Context, tx *gorm.DB, userID int64, requested int64) (int64, error) {
	if requested <= 0 {
		return 0, nil
	}

	granted, err := s.GrantedToday(ctx, tx, userID)
	if err != nil {
		zap.L().Error("failed to sum granted exp", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}

	remaining := s.dailyLimit - granted
	if remaining <= 0 {
		return 0, nil
	}
	return min(requested, remaining), nil
}

// CheckUserID rejects ids that cannot name a user row.
func CheckUserID(userID int64) error {
	if userID <= 0 {
		return errutil.BadRequest(fmt.Sprintf("invalid user id %d", userID), nil)
	}
	return nil
}

// LockUser reads the user row with SELECT ... FOR UPDATE. Every award for
// the same user serialises on this lock.
func (s *Service) LockUser(ctx context.Context, tx *gorm.DB, userID int64) (*User, error) {
	if err := CheckUserID(userID); err != nil {
		return nil, err
	}
	user, err := s.users.WithTrx(tx).FindOne(ctx, &User{}, option.WithEqual("id", userID), option.WithLockingUpdate())
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if user == nil {
		return nil, errutil.NotFound(fmt.Sprintf("user %d not found", userID), nil)
	}
	return user, nil
}

// AddExp increments the locked user's exp and returns the new total.
func (s *Service) AddExp(ctx context.Context, tx *gorm.DB, user *User, granted int64) (int64, error) {
	total := user.Exp + granted
	if err := s.users.WithTrx(tx).Update(ctx, user.ID, map[string]any{"exp": total}); err != nil {
		return 0, fmt.Errorf("update exp: %w", err)
	}
	user.Exp = total
	return total, nil
}

// Exp returns the user's current exp without locking.
func (s *Service) Exp(ctx context.Context, userID int64) (int64, error) {
	if err := CheckUserID(userID); err != nil {
		return 0, err
	}
	user, err := s.users.FindOne(ctx, &User{}, option.WithEqual("id", userID))
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, errutil.NotFound(fmt.Sprintf("user %d not found", userID), nil)
	}
	return user.Exp, nil
}
