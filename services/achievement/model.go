package achievement

import "time"

// Unlock records that a user earned an achievement. Rows are only ever
// inserted, by Award.
type Unlock struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	UserID        int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID int64     `gorm:"column:achievement_id;not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	EarnedAt      time.Time `gorm:"column:earned_at;not null" json:"earned_at"`
}

func (Unlock) TableName() string {
	return "user_achievements"
}

// Earned is a definition the user holds.
type Earned struct {
	Definition
	EarnedAt time.Time `json:"earned_at"`
}

type AwardResult struct {
	Achievement Definition `json:"achievement"`
	Granted     int64      `json:"exp_granted"`
	TotalExp    int64      `json:"total_exp"`
	Level       int64      `json:"level"`
}

type GrantResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpGained int64  `json:"exp_gained"`
	TotalExp  int64  `json:"total_exp"`
	Level     int64  `json:"level"`
}

type ReconcileResult struct {
	Unearned []Progress     `json:"achievements"`
	Awarded  []*AwardResult `json:"newly_earned"`
}

type OverviewItem struct {
	Definition
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

type TrackResult struct {
	Stat     string         `json:"stat"`
	Value    float64        `json:"value"`
	Awarded  []*AwardResult `json:"newly_earned"`
	TotalExp int64          `json:"total_exp"`
	Level    int64          `json:"level"`
}

// UserSummary is the public view of another user's achievements.
type UserSummary struct {
	UserID   int64      `json:"user_id"`
	Earned   []Earned   `json:"earned"`
	Progress []Progress `json:"progress"`
}
